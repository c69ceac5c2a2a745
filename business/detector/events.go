package detector

import (
	"phishSentinel/business/ensemble"
	"phishSentinel/business/signals"
)

// Event is one message for the pipeline. Events are applied in the order
// they are dispatched.
type Event interface {
	eventType() string
}

// Navigation reports a committed navigation. Features, when set, replace
// server-side URL extraction.
type Navigation struct {
	TabID    signals.TabID
	FrameID  int
	URL      string
	Features *ensemble.FeatureVector
}

// ContentReport carries the content features of the page, or the raw HTML
// to extract them from. Epoch pins the report to one navigation; AnyEpoch
// accepts whatever the tab currently shows.
type ContentReport struct {
	TabID    signals.TabID
	FrameID  int
	Epoch    signals.Epoch
	Features *ensemble.FeatureVector
	HTML     string
}

// ContentReady says the page finished loading.
type ContentReady struct {
	TabID signals.TabID
	Epoch signals.Epoch
}

type TabClosed struct {
	TabID signals.TabID
}

func (Navigation) eventType() string    { return "navigation" }
func (ContentReport) eventType() string { return "content" }
func (ContentReady) eventType() string  { return "ready" }
func (TabClosed) eventType() string     { return "closed" }

// Reasons reported on skipped events.
const (
	ReasonSubframe   = "subframe"
	ReasonScheme     = "unsupported_scheme"
	ReasonNoFeatures = "no_features"
	ReasonStale      = "stale_epoch"
	ReasonUnknownTab = "unknown_tab"
)

// Result is what the pipeline did with one event.
type Result struct {
	Epoch   signals.Epoch
	Score   *float64
	Verdict *signals.Verdict
	Skipped bool
	Reason  string
}

func skipped(reason string) Result {
	return Result{Skipped: true, Reason: reason}
}
