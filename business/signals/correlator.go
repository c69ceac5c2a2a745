package signals

import (
	"fmt"

	"phishSentinel/business/ensemble"
)

// Feature names the meta model was trained on. The meta model consumes the
// two upstream probabilities, not their margins.
const (
	MetaURLFeature     = "url_model_proba"
	MetaContentFeature = "content_model_proba"
)

// PhishingThreshold: a verdict is phishing when the meta probability is strictly above it.
const PhishingThreshold = 0.5

type MetaScorer interface {
	Score(fv ensemble.FeatureVector) (float64, error)
}

// Decisions reported to the popup and recorded in history.
const (
	DecisionPhishing = "phishing"
	DecisionBenign   = "benign"
)

type Verdict struct {
	TabID           TabID
	Epoch           Epoch
	URL             string
	Probability     float64
	IsPhishing      bool
	URLScore        float64
	ContentScore    float64
	URLFeatures     ensemble.FeatureVector
	ContentFeatures ensemble.FeatureVector
}

// Correlator decides whether a tab has everything the meta model needs.
type Correlator struct {
	meta MetaScorer
}

func NewCorrelator(meta MetaScorer) *Correlator {
	return &Correlator{meta: meta}
}

func MetaFeatures(urlScore, contentScore float64) ensemble.FeatureVector {
	fv := ensemble.NewFeatureVector(2)
	fv.Set(MetaURLFeature, urlScore)
	fv.Set(MetaContentFeature, contentScore)
	return fv
}

// Correlate returns a verdict when snap holds a URL signal, a content signal
// and the ready flag, and (nil, nil) otherwise. Calling it again on the same
// snapshot yields the same verdict.
func (c *Correlator) Correlate(snap Snapshot) (*Verdict, error) {
	if !snap.Known || snap.URL == nil || snap.Content == nil || !snap.Ready {
		return nil, nil
	}

	p, err := c.meta.Score(MetaFeatures(snap.URL.Score, snap.Content.Score))
	if err != nil {
		return nil, fmt.Errorf("meta score tab %d: %w", snap.TabID, err)
	}

	return &Verdict{
		TabID:           snap.TabID,
		Epoch:           snap.Epoch,
		URL:             snap.URL.URL,
		Probability:     p,
		IsPhishing:      p > PhishingThreshold,
		URLScore:        snap.URL.Score,
		ContentScore:    snap.Content.Score,
		URLFeatures:     snap.URL.Features,
		ContentFeatures: snap.Content.Features,
	}, nil
}

func (v Verdict) Decision() string {
	if v.IsPhishing {
		return DecisionPhishing
	}
	return DecisionBenign
}

// TryCorrelate is Correlate over the current snapshot of tab.
func (c *Correlator) TryCorrelate(store *Store, tab TabID) (*Verdict, error) {
	return c.Correlate(store.Snapshot(tab))
}
