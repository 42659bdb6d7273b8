package artifact

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/golang/snappy"
)

// Artifacts are persisted as snappy-compressed gob. The logical schema
// is JSON-compatible, but the on-disk form is binary for size and
// decode speed; round-tripping reconstructs the identical structure.

func init() {
	// Parameter fields and payloads carry nested values behind
	// interface types; gob needs the composite shapes registered.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register([]float64{})
	gob.Register([]string{})
}

// envelope is the stored wire form: metadata plus the encoded artifact.
type envelope struct {
	Fingerprint string
	CreatedAt   int64 // unix nanos
	RunID       string
	Body        []byte
}

func encode(artifact any, meta Meta) ([]byte, error) {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(artifact); err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	env := envelope{
		Fingerprint: meta.Fingerprint,
		CreatedAt:   meta.CreatedAt.UnixNano(),
		RunID:       meta.RunID,
		Body:        snappy.Encode(nil, body.Bytes()),
	}
	var out bytes.Buffer
	if err := gob.NewEncoder(&out).Encode(env); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return out.Bytes(), nil
}

func decode(data []byte, out any) (Meta, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return Meta{}, fmt.Errorf("decode envelope: %w", err)
	}
	meta := metaOf(env)
	if out == nil {
		return meta, nil
	}
	body, err := snappy.Decode(nil, env.Body)
	if err != nil {
		return Meta{}, fmt.Errorf("decompress artifact: %w", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(out); err != nil {
		return Meta{}, fmt.Errorf("decode artifact: %w", err)
	}
	return meta, nil
}

// decodeMeta reads only the envelope metadata, skipping payload
// decompression. Staleness checks use this path.
func decodeMeta(data []byte) (Meta, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return Meta{}, fmt.Errorf("decode envelope: %w", err)
	}
	return metaOf(env), nil
}

func metaOf(env envelope) Meta {
	return Meta{
		Fingerprint: env.Fingerprint,
		CreatedAt:   time.Unix(0, env.CreatedAt),
		RunID:       env.RunID,
	}
}
