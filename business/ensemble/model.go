package ensemble

import (
	"math"
)

// TreeDescription is one tree in parallel-array form, as exported by the booster.
type TreeDescription struct {
	SplitIndices    []int     `json:"split_indices"`
	SplitConditions []float64 `json:"split_conditions"`
	DefaultLeft     flexBools `json:"default_left"`
	LeftChildren    []int     `json:"left_children"`
	RightChildren   []int     `json:"right_children"`
	BaseWeights     []float64 `json:"base_weights"`
}

// Description is the flat ensemble description.
type Description struct {
	Trees     []TreeDescription `json:"trees"`
	BaseScore float64           `json:"base_score"`
}

// FeatureIndex maps feature name to slot.
type FeatureIndex map[string]int

// tree keeps the parallel arrays; node i is described by index i in every slice.
type tree struct {
	split     []int
	threshold []float64
	defLeft   []bool
	left      []int
	right     []int
	weight    []float64
}

func (t *tree) isLeaf(node int) bool {
	return t.left[node] < 0 || t.split[node] < 0
}

// Model is an immutable, validated tree ensemble.
type Model struct {
	name        string
	baseScore   float64
	bias        float64
	trees       []tree
	index       FeatureIndex
	indexToName []string
}

// NewModel validates desc and index and builds a Model. Every violation is a
// *ModelFormatError.
func NewModel(name string, desc Description, index FeatureIndex) (*Model, error) {
	if len(desc.Trees) == 0 {
		return nil, formatErr(name, "trees array missing or empty")
	}
	bs := desc.BaseScore
	if math.IsNaN(bs) || bs <= 0 || bs >= 1 {
		return nil, formatErr(name, "base_score %v outside (0,1)", bs)
	}

	indexToName, err := invertIndex(name, index)
	if err != nil {
		return nil, err
	}

	m := &Model{
		name:        name,
		baseScore:   bs,
		bias:        logit(bs),
		trees:       make([]tree, 0, len(desc.Trees)),
		index:       make(FeatureIndex, len(index)),
		indexToName: indexToName,
	}
	for k, v := range index {
		m.index[k] = v
	}

	for t, td := range desc.Trees {
		tr, err := buildTree(name, t, td, len(indexToName))
		if err != nil {
			return nil, err
		}
		m.trees = append(m.trees, tr)
	}

	return m, nil
}

func invertIndex(model string, index FeatureIndex) ([]string, error) {
	if len(index) == 0 {
		return nil, formatErr(model, "feature index is empty")
	}
	out := make([]string, len(index))
	for name, slot := range index {
		if name == "" {
			return nil, formatErr(model, "feature index contains an empty name")
		}
		if slot < 0 || slot >= len(index) {
			return nil, formatErr(model, "feature %q has slot %d outside [0,%d)", name, slot, len(index))
		}
		if out[slot] != "" {
			return nil, formatErr(model, "slot %d is shared by %q and %q", slot, out[slot], name)
		}
		out[slot] = name
	}
	return out, nil
}

func buildTree(model string, t int, td TreeDescription, slots int) (tree, error) {
	n := len(td.SplitIndices)
	if n == 0 {
		return tree{}, formatErr(model, "tree %d has no nodes", t)
	}
	if len(td.SplitConditions) != n ||
		len(td.DefaultLeft) != n ||
		len(td.LeftChildren) != n ||
		len(td.RightChildren) != n ||
		len(td.BaseWeights) != n {
		return tree{}, formatErr(model, "tree %d arrays have inconsistent node counts", t)
	}

	tr := tree{
		split:     td.SplitIndices,
		threshold: td.SplitConditions,
		defLeft:   []bool(td.DefaultLeft),
		left:      td.LeftChildren,
		right:     td.RightChildren,
		weight:    td.BaseWeights,
	}

	for i := 0; i < n; i++ {
		if tr.isLeaf(i) {
			if math.IsNaN(tr.weight[i]) || math.IsInf(tr.weight[i], 0) {
				return tree{}, formatErr(model, "tree %d leaf %d has non-finite weight", t, i)
			}
			continue
		}
		if tr.split[i] >= slots {
			return tree{}, formatErr(model, "tree %d node %d references unknown feature slot %d", t, i, tr.split[i])
		}
		if tr.left[i] >= n || tr.right[i] < 0 || tr.right[i] >= n {
			return tree{}, formatErr(model, "tree %d node %d has child index outside [0,%d)", t, i, n)
		}
	}

	return tr, nil
}

func (m *Model) Name() string { return m.name }

func (m *Model) BaseScore() float64 { return m.baseScore }

// Bias is logit(base_score).
func (m *Model) Bias() float64 { return m.bias }

func (m *Model) NumTrees() int { return len(m.trees) }

func (m *Model) NumFeatures() int { return len(m.indexToName) }

// FeatureName returns the feature name bound to slot.
func (m *Model) FeatureName(slot int) (string, bool) {
	if slot < 0 || slot >= len(m.indexToName) {
		return "", false
	}
	return m.indexToName[slot], true
}

func (m *Model) FeatureSlot(name string) (int, bool) {
	slot, ok := m.index[name]
	return slot, ok
}
