package ensemble

import "math"

// maxTraversalSteps bounds one tree walk. A valid tree never gets close.
const maxTraversalSteps = 1000

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// walk descends one tree and returns the leaf weight.
// fv lookups go through indexToName so the hot loop only does slice indexing.
func (m *Model) walk(t int, fv FeatureVector) (float64, error) {
	tr := &m.trees[t]
	node := 0
	for steps := 0; !tr.isLeaf(node); steps++ {
		if steps >= maxTraversalSteps {
			return 0, &ModelCorruptionError{Model: m.name, Tree: t, Node: node, Steps: steps}
		}

		var goLeft bool
		if v, ok := fv.Lookup(m.indexToName[tr.split[node]]); ok {
			// ties go right
			goLeft = v < tr.threshold[node]
		} else {
			goLeft = tr.defLeft[node]
		}

		if goLeft {
			node = tr.left[node]
		} else {
			node = tr.right[node]
		}
	}
	return tr.weight[node], nil
}

// margin sums every tree's leaf weight and adds the bias.
func (m *Model) margin(fv FeatureVector) (float64, error) {
	sum := 0.0
	for t := range m.trees {
		w, err := m.walk(t, fv)
		if err != nil {
			return 0, err
		}
		sum += w
	}
	return m.bias + sum, nil
}
