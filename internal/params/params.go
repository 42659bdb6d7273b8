// Package params holds the identity model for experiment artifacts.
// Every dataset and trial is keyed by parameter records whose ids are
// pure functions of their content, so id equality implies content
// equality and any content change forces a new id or a fingerprint
// mismatch downstream.
package params

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Fields carries the experiment-specific parameters of a dataset or
// trial. Values must be JSON-compatible (strings, numbers, bools,
// nested maps/slices) so that fingerprints are stable across processes.
type Fields map[string]any

// DatasetParams identifies one generated dataset.
type DatasetParams struct {
	DSID   string `json:"dsid"`
	Fields Fields `json:"fields,omitempty"`
}

// TestParams identifies one trial of a driven program against a
// dataset. DSID is a weak reference to the DatasetParams that produced
// the dataset; many TestParams may share one DSID.
type TestParams struct {
	TID    string `json:"tid"`
	DSID   string `json:"dsid"`
	Prog   string `json:"prog"`
	Fields Fields `json:"fields,omitempty"`
}

// NewDatasetParams derives a DatasetParams whose DSID is computed from
// the given fields.
func NewDatasetParams(fields Fields) DatasetParams {
	return DatasetParams{DSID: ComputeID(fields), Fields: fields}
}

// Key returns the identity under which this trial's datapoint is
// stored. It folds together the trial id, dataset reference and
// program so distinct cells of the experiment matrix never collide.
func (tp TestParams) Key() string {
	return ComputeID(Fields{
		"tid":    tp.TID,
		"dsid":   tp.DSID,
		"prog":   tp.Prog,
		"fields": map[string]any(tp.Fields),
	})
}

// ComputeID returns a short deterministic id for a set of fields.
// Two field sets produce the same id iff they are content-equal.
func ComputeID(fields Fields) string {
	sum := sha256.Sum256(canonical(map[string]any(fields)))
	return hex.EncodeToString(sum[:])[:16]
}

// Fingerprint returns the full content hash of an arbitrary
// JSON-compatible value. Used by the artifact store to decide
// staleness of cached artifacts against current parameters.
func Fingerprint(v any) string {
	sum := sha256.Sum256(canonical(v))
	return hex.EncodeToString(sum[:])
}

// EqualByContent reports whether two field sets are content-equal,
// ignoring representation differences such as int vs float encodings.
func EqualByContent(a, b Fields) bool {
	return Fingerprint(map[string]any(a)) == Fingerprint(map[string]any(b))
}

// canonical produces a byte representation that is identical for
// content-equal values: map keys sorted, all numbers normalized to
// float64 before encoding. YAML and gob round-trips can change the
// concrete numeric type, so normalization happens up front.
func canonical(v any) []byte {
	b, err := json.Marshal(normalize(v))
	if err != nil {
		// Only non-JSON-able values (channels, funcs) can land here,
		// which is a programming error in the experiment definition.
		panic(fmt.Sprintf("params: unencodable value: %v", err))
	}
	return b
}

func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := make(map[string]any, len(x))
		for _, k := range keys {
			m[k] = normalize(x[k])
		}
		return m
	case Fields:
		return normalize(map[string]any(x))
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = normalize(e)
		}
		return s
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	default:
		return v
	}
}

// ConfigError reports a malformed experiment definition, including id
// collisions between distinct parameter records. It is fatal: the
// orchestrator aborts before any generation or trial work starts.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

// Registry opportunistically detects id collisions as parameter
// records are materialized. Safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	seen map[string]string // id -> fingerprint of fields
}

func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]string)}
}

// Observe records an id together with the fields that produced it.
// Returns a ConfigError if the same id was previously observed for
// content-different fields.
func (r *Registry) Observe(id string, fields Fields) error {
	fp := Fingerprint(map[string]any(fields))
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.seen[id]; ok && prev != fp {
		return &ConfigError{Msg: fmt.Sprintf("id collision: %q maps to two distinct parameter sets", id)}
	}
	r.seen[id] = fp
	return nil
}
