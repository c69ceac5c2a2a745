package domain

import "phishSentinel/business/ensemble"

// NavigationEventRequest is sent when a tab commits a navigation.
type NavigationEventRequest struct {
	TabID   int    `json:"tab_id" validate:"gte=0"`
	FrameID int    `json:"frame_id" validate:"gte=0"`
	URL     string `json:"url" validate:"required"`
}

// ContentEventRequest carries either extracted page features or the raw
// document. When both are present, features win.
type ContentEventRequest struct {
	TabID    int                     `json:"tab_id" validate:"gte=0"`
	FrameID  int                     `json:"frame_id" validate:"gte=0"`
	Epoch    uint64                  `json:"epoch,omitempty"`
	Features *ensemble.FeatureVector `json:"features,omitempty"`
	HTML     string                  `json:"html,omitempty"`
}

type ReadyEventRequest struct {
	TabID int    `json:"tab_id" validate:"gte=0"`
	Epoch uint64 `json:"epoch,omitempty"`
}

type EventResponse struct {
	Epoch   uint64      `json:"epoch,omitempty"`
	Score   *float64    `json:"score,omitempty"`
	Skipped bool        `json:"skipped"`
	Reason  string      `json:"reason,omitempty"`
	Verdict *TabVerdict `json:"verdict,omitempty"`
}

type ModelStatus struct {
	Name      string  `json:"name"`
	Ready     bool    `json:"ready"`
	Trees     int     `json:"trees"`
	Features  int     `json:"features"`
	BaseScore float64 `json:"base_score,omitempty"`
	LoadError string  `json:"load_error,omitempty"`
}
