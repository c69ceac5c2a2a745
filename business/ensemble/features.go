package ensemble

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// FeatureState describes how a feature resolves inside a FeatureVector.
type FeatureState int

const (
	FeatureAbsent FeatureState = iota
	FeatureNonFinite
	FeatureFinite
)

// FeatureVector maps feature names to values. A name that was never set is
// absent; a name set to NaN or ±Inf is present but non-finite. Traversal treats
// both as missing and follows the node's default direction.
type FeatureVector struct {
	values map[string]float64
}

func NewFeatureVector(size int) FeatureVector {
	return FeatureVector{values: make(map[string]float64, size)}
}

// FeatureVectorFrom copies m into a new vector.
func FeatureVectorFrom(m map[string]float64) FeatureVector {
	fv := NewFeatureVector(len(m))
	for k, v := range m {
		fv.values[k] = v
	}
	return fv
}

func (fv *FeatureVector) Set(name string, v float64) {
	if fv.values == nil {
		fv.values = make(map[string]float64)
	}
	fv.values[name] = v
}

// SetBool stores b as 1 or 0.
func (fv *FeatureVector) SetBool(name string, b bool) {
	if b {
		fv.Set(name, 1)
		return
	}
	fv.Set(name, 0)
}

func (fv FeatureVector) State(name string) FeatureState {
	v, ok := fv.values[name]
	switch {
	case !ok:
		return FeatureAbsent
	case math.IsNaN(v) || math.IsInf(v, 0):
		return FeatureNonFinite
	default:
		return FeatureFinite
	}
}

// Lookup returns the value and true only when the feature is present and finite.
func (fv FeatureVector) Lookup(name string) (float64, bool) {
	v, ok := fv.values[name]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (fv FeatureVector) Len() int { return len(fv.values) }

func (fv FeatureVector) Names() []string {
	names := make([]string, 0, len(fv.values))
	for k := range fv.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the finite entries, suitable for persistence.
func (fv FeatureVector) Map() map[string]any {
	out := make(map[string]any, len(fv.values))
	for k, v := range fv.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return out
}

// UnmarshalJSON accepts {"name": number|null}. null is stored as NaN.
func (fv *FeatureVector) UnmarshalJSON(data []byte) error {
	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("feature vector: %w", err)
	}
	fv.values = make(map[string]float64, len(raw))
	for k, v := range raw {
		if v == nil {
			fv.values[k] = math.NaN()
			continue
		}
		fv.values[k] = *v
	}
	return nil
}

func (fv FeatureVector) MarshalJSON() ([]byte, error) {
	return json.Marshal(fv.Map())
}
