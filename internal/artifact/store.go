// Package artifact provides durable keyed storage for datasets,
// datapoints and plot documents. Artifacts are addressed by the id of
// the parameters that produced them plus a kind tag, and each stored
// blob carries the fingerprint of those parameters so the orchestrator
// can decide whether a cached artifact is still valid.
//
// Two backends exist: a filesystem store (one compressed blob per key,
// written atomically) and a SQLite store. Both hold the same codec
// bytes and are interchangeable behind the Store interface.
package artifact

import (
	"errors"
	"fmt"
	"time"
)

// Kind tags the artifact family a key belongs to.
type Kind string

const (
	KindDataset   Kind = "dataset"
	KindDatapoint Kind = "datapoint"
	KindPlotDoc   Kind = "plotdoc"
	KindFigure    Kind = "figure"
)

// Key addresses one artifact.
type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string { return string(k.Kind) + "/" + k.ID }

// Meta records how an artifact came to be. Fingerprint is the content
// hash of the parameters that produced the artifact; staleness is a
// fingerprint comparison, never a heuristic on the payload itself.
type Meta struct {
	Fingerprint string
	CreatedAt   time.Time
	RunID       string
}

// ErrNotFound is returned by Load when no artifact exists for a key.
var ErrNotFound = errors.New("artifact: not found")

// IOError wraps a persistence failure. The orchestrator treats any
// IOError as fatal, since cache correctness cannot be guaranteed after
// a partial write.
type IOError struct {
	Op  string
	Key Key
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("artifact: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Store is the persistence contract for all pipeline artifacts.
//
// Save must be atomic per key: a crash mid-save must not leave a
// partial artifact visible to a subsequent Load, and a concurrent Load
// of the same key observes either the old or the new artifact, never a
// mix. Writes to distinct keys must not contend beyond backend
// internals.
type Store interface {
	// Exists reports whether an artifact is present for key.
	Exists(key Key) (bool, error)

	// Load decodes the artifact for key into out (a pointer to the
	// concrete artifact type). Returns ErrNotFound if absent.
	Load(key Key, out any) (Meta, error)

	// Save encodes and durably persists the artifact under key.
	Save(key Key, artifact any, meta Meta) error

	// Stale reports whether the artifact for key must be regenerated:
	// true when missing, or when the stored fingerprint differs from
	// fingerprint, or when force is set.
	Stale(key Key, fingerprint string, force bool) (bool, error)

	// List returns the ids of all artifacts of a kind.
	List(kind Kind) ([]string, error)

	// Delete removes the artifact for key, if present.
	Delete(key Key) error

	Close() error
}

// Open constructs a store backend by name. Recognized backends are
// "fs" (root is a directory) and "sqlite" (root is a database path).
func Open(backend, root string) (Store, error) {
	switch backend {
	case "", "fs":
		return OpenFS(root)
	case "sqlite":
		return OpenSQLite(root)
	default:
		return nil, fmt.Errorf("artifact: unknown store backend %q", backend)
	}
}
