package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSStore keeps one file per artifact under root/<kind>/<id>.bin.
// Saves go through a temp file in the same directory followed by
// os.Rename, which is atomic on POSIX filesystems, so a concurrent
// Load of the same key sees either the previous artifact or the new
// one and a crash never leaves a partial file visible.
type FSStore struct {
	root string
}

// OpenFS creates (if needed) and opens a filesystem store rooted at dir.
func OpenFS(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact: fs store requires a root directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create store root: %w", err)
	}
	return &FSStore{root: dir}, nil
}

func (s *FSStore) path(key Key) string {
	return filepath.Join(s.root, string(key.Kind), key.ID+".bin")
}

func (s *FSStore) Exists(key Key) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &IOError{Op: "stat", Key: key, Err: err}
}

func (s *FSStore) Load(key Key, out any) (Meta, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, ErrNotFound
		}
		return Meta{}, &IOError{Op: "read", Key: key, Err: err}
	}
	meta, err := decode(data, out)
	if err != nil {
		return Meta{}, &IOError{Op: "decode", Key: key, Err: err}
	}
	return meta, nil
}

func (s *FSStore) Save(key Key, artifact any, meta Meta) error {
	data, err := encode(artifact, meta)
	if err != nil {
		return &IOError{Op: "encode", Key: key, Err: err}
	}
	dir := filepath.Dir(s.path(key))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Key: key, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+key.ID+"-*")
	if err != nil {
		return &IOError{Op: "create", Key: key, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &IOError{Op: "write", Key: key, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &IOError{Op: "sync", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &IOError{Op: "close", Key: key, Err: err}
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return &IOError{Op: "rename", Key: key, Err: err}
	}
	return nil
}

func (s *FSStore) Stale(key Key, fingerprint string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, &IOError{Op: "read", Key: key, Err: err}
	}
	meta, err := decodeMeta(data)
	if err != nil {
		// A corrupt envelope means the cache cannot be trusted; treat
		// the artifact as stale so it gets rewritten.
		return true, nil
	}
	return meta.Fingerprint != fingerprint, nil
}

func (s *FSStore) List(kind Kind) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, string(kind)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &IOError{Op: "list", Key: Key{Kind: kind}, Err: err}
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".tmp-") || !strings.HasSuffix(name, ".bin") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".bin"))
	}
	return ids, nil
}

func (s *FSStore) Delete(key Key) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return &IOError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (s *FSStore) Close() error { return nil }
