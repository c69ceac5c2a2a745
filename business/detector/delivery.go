package detector

import (
	"context"
	"errors"
	"fmt"

	"phishSentinel/business/signals"
	"phishSentinel/domain"

	"gorm.io/datatypes"
)

// ---- Repository interfaces ----

type SessionRepository interface {
	SaveTabVerdict(ctx context.Context, tabID int, v domain.TabVerdict) error
	DeleteTabVerdict(ctx context.Context, tabID int) error
}

type HistoryRepository interface {
	SaveVerdict(ctx context.Context, rec *domain.VerdictRecord) error
}

type VerdictPublisher interface {
	Publish(tabID int, v domain.TabVerdict)
}

type PhishingAlerter interface {
	SendPhishingAlert(ctx context.Context, tabID int, v domain.TabVerdict) error
}

// Delivery writes each verdict to the session store, the history table and
// the live subscribers, in that order. Any of them may be nil. Phishing
// verdicts are also sent to the alerter when one is set.
type Delivery struct {
	sessions  SessionRepository
	history   HistoryRepository
	publisher VerdictPublisher
	alerter   PhishingAlerter
}

func NewDelivery(sessions SessionRepository, history HistoryRepository, publisher VerdictPublisher) *Delivery {
	return &Delivery{
		sessions:  sessions,
		history:   history,
		publisher: publisher,
	}
}

func (d *Delivery) WithAlerter(a PhishingAlerter) *Delivery {
	d.alerter = a
	return d
}

func TabVerdictOf(v signals.Verdict) domain.TabVerdict {
	return domain.TabVerdict{
		Score:    v.Probability,
		Decision: v.Decision(),
		URL:      v.URL,
		Epoch:    uint64(v.Epoch),
	}
}

func VerdictRecordOf(v signals.Verdict) *domain.VerdictRecord {
	return &domain.VerdictRecord{
		TabID:        int(v.TabID),
		Epoch:        uint64(v.Epoch),
		URL:          v.URL,
		Score:        v.Probability,
		Decision:     v.Decision(),
		URLScore:     v.URLScore,
		ContentScore: v.ContentScore,
		Features: datatypes.JSONMap{
			"url":     v.URLFeatures.Map(),
			"content": v.ContentFeatures.Map(),
		},
	}
}

// Deliver attempts every destination even when an earlier one fails.
func (d *Delivery) Deliver(ctx context.Context, v signals.Verdict) error {
	tv := TabVerdictOf(v)
	var errs []error

	if d.sessions != nil {
		if err := d.sessions.SaveTabVerdict(ctx, int(v.TabID), tv); err != nil {
			errs = append(errs, fmt.Errorf("save session verdict: %w", err))
		}
	}
	if d.history != nil {
		if err := d.history.SaveVerdict(ctx, VerdictRecordOf(v)); err != nil {
			errs = append(errs, fmt.Errorf("save verdict history: %w", err))
		}
	}
	if d.publisher != nil {
		d.publisher.Publish(int(v.TabID), tv)
	}
	if d.alerter != nil && v.IsPhishing {
		if err := d.alerter.SendPhishingAlert(ctx, int(v.TabID), tv); err != nil {
			errs = append(errs, fmt.Errorf("send phishing alert: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (d *Delivery) Forget(ctx context.Context, tab signals.TabID) error {
	if d.sessions == nil {
		return nil
	}
	if err := d.sessions.DeleteTabVerdict(ctx, int(tab)); err != nil {
		return fmt.Errorf("delete session verdict: %w", err)
	}
	return nil
}
