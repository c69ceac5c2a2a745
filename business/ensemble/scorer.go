package ensemble

import (
	"sync"
	"sync/atomic"
)

// Scorer evaluates feature vectors against one model. It starts not ready and
// becomes ready after a successful Load. A failed load leaves it not ready and
// keeps the error for status reporting.
type Scorer struct {
	name  string
	model atomic.Pointer[Model]

	mu      sync.Mutex
	loadErr error
}

func NewScorer(name string) *Scorer {
	return &Scorer{name: name}
}

// NewScorerWithModel returns a ready scorer around an already built model.
func NewScorerWithModel(m *Model) *Scorer {
	s := &Scorer{name: m.Name()}
	s.model.Store(m)
	return s
}

func (s *Scorer) Name() string { return s.name }

func (s *Scorer) Ready() bool { return s.model.Load() != nil }

// Model returns the loaded model or nil.
func (s *Scorer) Model() *Model { return s.model.Load() }

func (s *Scorer) LoadErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// LoadFiles loads the model from disk. On failure the scorer stays in its
// previous state and the error is recorded.
func (s *Scorer) LoadFiles(ensemblePath, featureIndexPath string) error {
	m, err := LoadFiles(s.name, ensemblePath, featureIndexPath)
	return s.install(m, err)
}

// Install validates desc and index and swaps the model in.
func (s *Scorer) Install(desc Description, index FeatureIndex) error {
	m, err := NewModel(s.name, desc, index)
	return s.install(m, err)
}

func (s *Scorer) install(m *Model, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.loadErr = err
		return err
	}
	s.loadErr = nil
	s.model.Store(m)
	return nil
}

// Margin returns the raw log-odds for fv.
func (s *Scorer) Margin(fv FeatureVector) (float64, error) {
	m := s.model.Load()
	if m == nil {
		return 0, &NotReadyError{Model: s.name}
	}
	return m.margin(fv)
}

// Score returns the phishing probability for fv.
func (s *Scorer) Score(fv FeatureVector) (float64, error) {
	margin, err := s.Margin(fv)
	if err != nil {
		return 0, err
	}
	return sigmoid(margin), nil
}
