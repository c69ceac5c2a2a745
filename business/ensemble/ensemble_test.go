//go:build !integration

package ensemble

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoStumps builds two trees of three nodes each:
//
//	tree 0: f0 < 0.5 ? 0.2 : -0.4   (missing -> left)
//	tree 1: f1 < 10  ? 0.3 : -0.1   (missing -> right)
func twoStumps(baseScore float64) Description {
	return Description{
		BaseScore: baseScore,
		Trees: []TreeDescription{
			{
				SplitIndices:    []int{0, 0, 0},
				SplitConditions: []float64{0.5, 0, 0},
				DefaultLeft:     []bool{true, false, false},
				LeftChildren:    []int{1, -1, -1},
				RightChildren:   []int{2, -1, -1},
				BaseWeights:     []float64{0, 0.2, -0.4},
			},
			{
				SplitIndices:    []int{1, 0, 0},
				SplitConditions: []float64{10, 0, 0},
				DefaultLeft:     []bool{false, false, false},
				LeftChildren:    []int{1, -1, -1},
				RightChildren:   []int{2, -1, -1},
				BaseWeights:     []float64{0, 0.3, -0.1},
			},
		},
	}
}

var stumpIndex = FeatureIndex{"f0": 0, "f1": 1}

func mustScorer(t *testing.T, desc Description) *Scorer {
	t.Helper()
	s := NewScorer("test")
	require.NoError(t, s.Install(desc, stumpIndex))
	return s
}

func TestScoreMatchesHandComputedTraversal(t *testing.T) {
	s := mustScorer(t, twoStumps(0.5))

	fv := FeatureVectorFrom(map[string]float64{"f0": 0.1, "f1": 20})
	margin, err := s.Margin(fv)
	require.NoError(t, err)
	assert.InDelta(t, 0.2-0.1, margin, 1e-9)

	p, err := s.Score(fv)
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-0.1)), p, 1e-9)
}

func TestBiasIsLogitOfBaseScore(t *testing.T) {
	s := mustScorer(t, twoStumps(0.25))
	assert.InDelta(t, -math.Log(3), s.Model().Bias(), 1e-12)

	margin, err := s.Margin(FeatureVectorFrom(map[string]float64{"f0": 1, "f1": 1}))
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(3)-0.4+0.3, margin, 1e-9)
}

func TestThresholdTieRoutesRight(t *testing.T) {
	s := mustScorer(t, twoStumps(0.5))

	margin, err := s.Margin(FeatureVectorFrom(map[string]float64{"f0": 0.5, "f1": 10}))
	require.NoError(t, err)
	assert.InDelta(t, -0.4-0.1, margin, 1e-9)

	margin, err = s.Margin(FeatureVectorFrom(map[string]float64{"f0": math.Nextafter(0.5, 0), "f1": math.Nextafter(10, 0)}))
	require.NoError(t, err)
	assert.InDelta(t, 0.2+0.3, margin, 1e-9)
}

func TestMissingFollowsDefaultDirection(t *testing.T) {
	s := mustScorer(t, twoStumps(0.5))

	absent, err := s.Margin(NewFeatureVector(0))
	require.NoError(t, err)
	assert.InDelta(t, 0.2-0.1, absent, 1e-9)

	// only f1 missing: f0 decides tree 0, tree 1 goes right
	partial, err := s.Margin(FeatureVectorFrom(map[string]float64{"f0": 3}))
	require.NoError(t, err)
	assert.InDelta(t, -0.4-0.1, partial, 1e-9)
}

func TestAbsentAndNonFiniteAreEquivalent(t *testing.T) {
	s := mustScorer(t, twoStumps(0.5))

	absent, err := s.Margin(NewFeatureVector(0))
	require.NoError(t, err)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		fv := FeatureVectorFrom(map[string]float64{"f0": v, "f1": v})
		assert.Equal(t, FeatureNonFinite, fv.State("f0"))
		got, err := s.Margin(fv)
		require.NoError(t, err)
		assert.Equal(t, absent, got)
	}
	assert.Equal(t, FeatureAbsent, NewFeatureVector(0).State("f0"))
}

func TestScoreStaysInUnitInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		desc := twoStumps(0.01 + 0.98*rng.Float64())
		for _, tr := range desc.Trees {
			tr.BaseWeights[1] = rng.NormFloat64() * 20
			tr.BaseWeights[2] = rng.NormFloat64() * 20
		}
		s := mustScorer(t, desc)
		fv := FeatureVectorFrom(map[string]float64{"f0": rng.NormFloat64(), "f1": rng.NormFloat64() * 20})

		margin, err := s.Margin(fv)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(margin) || math.IsInf(margin, 0))

		p, err := s.Score(fv)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestCycleRaisesModelCorruption(t *testing.T) {
	desc := Description{
		BaseScore: 0.5,
		Trees: []TreeDescription{{
			SplitIndices:    []int{0, 0},
			SplitConditions: []float64{1, 1},
			DefaultLeft:     []bool{true, true},
			LeftChildren:    []int{1, 0},
			RightChildren:   []int{1, 0},
			BaseWeights:     []float64{0, 0},
		}},
	}
	s := mustScorer(t, desc)

	_, err := s.Score(FeatureVectorFrom(map[string]float64{"f0": 0}))
	var corrupt *ModelCorruptionError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, 0, corrupt.Tree)
	assert.Equal(t, maxTraversalSteps, corrupt.Steps)
}

func TestNotReadyBeforeLoad(t *testing.T) {
	s := NewScorer("url")
	assert.False(t, s.Ready())

	_, err := s.Score(NewFeatureVector(0))
	require.ErrorIs(t, err, ErrNotReady)
	var nr *NotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, "url", nr.Model)
}

func TestModelFormatErrors(t *testing.T) {
	mismatched := twoStumps(0.5)
	mismatched.Trees[1].BaseWeights = []float64{0, 0.3}

	unknownSlot := twoStumps(0.5)
	unknownSlot.Trees[0].SplitIndices = []int{5, 0, 0}

	badChild := twoStumps(0.5)
	badChild.Trees[0].RightChildren = []int{9, -1, -1}

	cases := []struct {
		name  string
		desc  Description
		index FeatureIndex
	}{
		{"empty trees", Description{BaseScore: 0.5}, stumpIndex},
		{"mismatched arrays", mismatched, stumpIndex},
		{"base score zero", twoStumps(0), stumpIndex},
		{"base score one", twoStumps(1), stumpIndex},
		{"base score nan", twoStumps(math.NaN()), stumpIndex},
		{"unknown slot", unknownSlot, stumpIndex},
		{"child out of range", badChild, stumpIndex},
		{"empty index", twoStumps(0.5), FeatureIndex{}},
		{"shared slot", twoStumps(0.5), FeatureIndex{"f0": 0, "f1": 0}},
		{"slot out of range", twoStumps(0.5), FeatureIndex{"f0": 0, "f1": 2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScorer("content")
			err := s.Install(tc.desc, tc.index)
			var mfe *ModelFormatError
			require.ErrorAs(t, err, &mfe)
			assert.Equal(t, "content", mfe.Model)
			assert.False(t, s.Ready())
			assert.Equal(t, err, s.LoadErr())
		})
	}
}

func TestFailedReloadKeepsPreviousModel(t *testing.T) {
	s := mustScorer(t, twoStumps(0.5))
	err := s.Install(Description{BaseScore: 0.5}, stumpIndex)
	require.Error(t, err)
	assert.True(t, s.Ready())
	assert.Equal(t, 2, s.Model().NumTrees())
}

func TestDecodeBoosterLayout(t *testing.T) {
	doc := `{
	  "learner": {
	    "learner_model_param": {"base_score": "[5E-1]", "num_feature": "2"},
	    "gradient_booster": {"model": {"trees": [{
	      "split_indices": [1, 0, 0],
	      "split_conditions": [10, 0.3, -0.1],
	      "default_left": [0, 0, 0],
	      "left_children": [1, -1, -1],
	      "right_children": [2, -1, -1],
	      "base_weights": [0, 0.3, -0.1]
	    }]}}
	  }
	}`
	m, err := Load("meta", strings.NewReader(doc), strings.NewReader(`{"f0": 0, "f1": 1}`))
	require.NoError(t, err)
	assert.Equal(t, 0.5, m.BaseScore())
	assert.Equal(t, 1, m.NumTrees())

	name, ok := m.FeatureName(1)
	require.True(t, ok)
	assert.Equal(t, "f1", name)

	s := NewScorerWithModel(m)
	margin, err := s.Margin(FeatureVectorFrom(map[string]float64{"f1": 3}))
	require.NoError(t, err)
	assert.InDelta(t, 0.3, margin, 1e-9)
}

func TestDecodeFlatLayout(t *testing.T) {
	doc := `{"base_score": 0.5, "trees": [{
	  "split_indices": [0, 0, 0],
	  "split_conditions": [0.5, 0, 0],
	  "default_left": [true, false, false],
	  "left_children": [1, -1, -1],
	  "right_children": [2, -1, -1],
	  "base_weights": [0, 0.2, -0.4]
	}]}`
	desc, err := DecodeDescription("url", strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, desc.Trees, 1)
	assert.Equal(t, []bool{true, false, false}, []bool(desc.Trees[0].DefaultLeft))
}

func TestDecodeRejectsMissingBaseScore(t *testing.T) {
	_, err := DecodeDescription("url", strings.NewReader(`{"trees": []}`))
	var mfe *ModelFormatError
	require.ErrorAs(t, err, &mfe)

	_, err = DecodeDescription("url", strings.NewReader(`{not json`))
	require.ErrorAs(t, err, &mfe)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestFeatureVectorJSONNullIsNonFinite(t *testing.T) {
	var fv FeatureVector
	require.NoError(t, fv.UnmarshalJSON([]byte(`{"a": 1.5, "b": null}`)))

	v, ok := fv.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)
	assert.Equal(t, FeatureNonFinite, fv.State("b"))
	assert.Equal(t, []string{"a", "b"}, fv.Names())
}
