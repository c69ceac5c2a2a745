package detector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"phishSentinel/business/ensemble"
	"phishSentinel/business/features"
	"phishSentinel/business/signals"
	"phishSentinel/pkg/logger"
)

var (
	// ErrStopped is returned by Dispatch once Run has returned.
	ErrStopped = errors.New("detector: pipeline stopped")
	// ErrRunning is returned when Run is called on a pipeline that already ran.
	ErrRunning = errors.New("detector: pipeline already started")
)

const (
	DefaultInboxSize       = 64
	DefaultDeliveryBuffer  = 64
	DefaultDeliveryTimeout = 5 * time.Second
)

// Scorer is a named model that maps a feature vector to a probability.
type Scorer interface {
	Name() string
	Score(fv ensemble.FeatureVector) (float64, error)
}

// VerdictSink receives pipeline output on the delivery goroutine, in the
// order the pipeline produced it.
type VerdictSink interface {
	Deliver(ctx context.Context, v signals.Verdict) error
	Forget(ctx context.Context, tab signals.TabID) error
}

type Option func(*Pipeline)

func WithInboxSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.inboxSize = n
		}
	}
}

func WithDeliveryBuffer(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.deliveryBuffer = n
		}
	}
}

func WithDeliveryTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.deliveryTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

type message struct {
	ctx   context.Context
	ev    Event
	reply chan outcome
}

type outcome struct {
	res Result
	err error
}

type job struct {
	traceID string
	verdict *signals.Verdict
	forget  signals.TabID
}

// Pipeline owns the signal store. A single goroutine (Run) applies events one
// at a time, so store updates and correlation never interleave. Delivery runs
// on its own goroutine behind a bounded queue that the event loop never waits on.
type Pipeline struct {
	urlScorer     Scorer
	contentScorer Scorer
	store         *signals.Store
	metaName      string
	correlator    *signals.Correlator
	sink          VerdictSink

	inboxSize       int
	deliveryBuffer  int
	deliveryTimeout time.Duration
	now             func() time.Time

	inbox   chan message
	jobs    chan job
	done    chan struct{}
	started atomic.Bool
}

func New(urlScorer, contentScorer, metaScorer Scorer, store *signals.Store, sink VerdictSink, opts ...Option) *Pipeline {
	p := &Pipeline{
		urlScorer:       urlScorer,
		contentScorer:   contentScorer,
		store:           store,
		metaName:        metaScorer.Name(),
		correlator:      signals.NewCorrelator(metaScorer),
		sink:            sink,
		inboxSize:       DefaultInboxSize,
		deliveryBuffer:  DefaultDeliveryBuffer,
		deliveryTimeout: DefaultDeliveryTimeout,
		now:             time.Now,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.store == nil {
		p.store = signals.NewStore(signals.DefaultCapacity)
	}
	if p.sink == nil {
		p.sink = nopSink{}
	}
	p.inbox = make(chan message, p.inboxSize)
	p.jobs = make(chan job, p.deliveryBuffer)
	return p
}

// Run applies dispatched events until ctx is done, then drains pending
// deliveries and returns. A pipeline runs once.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrRunning
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.deliverLoop(context.WithoutCancel(ctx))
	}()

	logger.Info("detector pipeline started", "store_capacity", p.store.Capacity(), "inbox_size", p.inboxSize)

	for {
		select {
		case <-ctx.Done():
			close(p.done)
			close(p.jobs)
			wg.Wait()
			logger.Info("detector pipeline stopped")
			return nil
		case msg := <-p.inbox:
			res, err := p.apply(msg.ctx, msg.ev)
			msg.reply <- outcome{res: res, err: err}
		}
	}
}

// Dispatch queues ev and waits for its result. Once queued, the event is
// applied even if ctx is cancelled before the result arrives.
func (p *Pipeline) Dispatch(ctx context.Context, ev Event) (Result, error) {
	msg := message{ctx: ctx, ev: ev, reply: make(chan outcome, 1)}

	select {
	case <-p.done:
		return Result{}, ErrStopped
	default:
	}

	select {
	case p.inbox <- msg:
	case <-p.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case out := <-msg.reply:
		return out.res, out.err
	case <-p.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (p *Pipeline) apply(ctx context.Context, ev Event) (Result, error) {
	start := time.Now()
	typ := ev.eventType()

	var (
		res Result
		err error
	)
	switch e := ev.(type) {
	case Navigation:
		res, err = p.onNavigation(ctx, e)
	case ContentReport:
		res, err = p.onContent(ctx, e)
	case ContentReady:
		res, err = p.onReady(ctx, e)
	case TabClosed:
		res, err = p.onClosed(ctx, e)
	default:
		err = fmt.Errorf("detector: unknown event %T", ev)
	}

	EventDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		EventsTotal.WithLabelValues(typ, outcomeError).Inc()
		logger.Error("event failed", "trace_id", TraceIDFromContext(ctx), "type", typ, "error", err)
	case res.Skipped:
		EventsTotal.WithLabelValues(typ, outcomeSkipped).Inc()
		logger.Debug("event skipped", "trace_id", TraceIDFromContext(ctx), "type", typ, "reason", res.Reason)
	default:
		EventsTotal.WithLabelValues(typ, outcomeApplied).Inc()
	}
	return res, err
}

func scorable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

func (p *Pipeline) score(s Scorer, fv ensemble.FeatureVector) (float64, error) {
	v, err := s.Score(fv)
	if err != nil {
		ScoringFailuresTotal.WithLabelValues(s.Name(), failureKind(err)).Inc()
		return 0, err
	}
	return v, nil
}

func (p *Pipeline) onNavigation(ctx context.Context, e Navigation) (Result, error) {
	if e.FrameID != 0 {
		return skipped(ReasonSubframe), nil
	}
	if !scorable(e.URL) {
		return skipped(ReasonScheme), nil
	}

	var fv ensemble.FeatureVector
	if e.Features != nil {
		fv = *e.Features
	} else {
		extracted, ok := features.ExtractURL(e.URL)
		if !ok {
			return skipped(ReasonNoFeatures), nil
		}
		fv = extracted
	}

	score, err := p.score(p.urlScorer, fv)
	if err != nil {
		return Result{}, fmt.Errorf("score url for tab %d: %w", e.TabID, err)
	}

	epoch := p.store.RecordURLSignal(e.TabID, signals.URLSignal{
		Score:      score,
		Features:   fv,
		URL:        e.URL,
		RecordedAt: p.now(),
	})
	logger.Debug("url scored",
		"trace_id", TraceIDFromContext(ctx),
		"tab_id", e.TabID,
		"epoch", epoch,
		"score", score,
	)

	return p.correlate(ctx, e.TabID, Result{Epoch: epoch, Score: &score})
}

func (p *Pipeline) onContent(ctx context.Context, e ContentReport) (Result, error) {
	if e.FrameID != 0 {
		return skipped(ReasonSubframe), nil
	}

	if e.Features == nil && e.HTML == "" {
		return skipped(ReasonNoFeatures), nil
	}
	if !p.store.AcceptsContent(e.TabID, e.Epoch) {
		return skipped(ReasonStale), nil
	}

	var fv ensemble.FeatureVector
	if e.Features != nil {
		fv = *e.Features
	} else {
		pageURL := ""
		if snap := p.store.Snapshot(e.TabID); snap.URL != nil {
			pageURL = snap.URL.URL
		}
		extracted, ok := features.ExtractContent(e.HTML, pageURL)
		if !ok {
			return skipped(ReasonNoFeatures), nil
		}
		fv = extracted
	}

	score, err := p.score(p.contentScorer, fv)
	if err != nil {
		return Result{}, fmt.Errorf("score content for tab %d: %w", e.TabID, err)
	}

	if !p.store.RecordContentSignal(e.TabID, e.Epoch, signals.ContentSignal{
		Score:      score,
		Features:   fv,
		RecordedAt: p.now(),
	}) {
		return skipped(ReasonStale), nil
	}

	epoch := p.store.Snapshot(e.TabID).Epoch
	logger.Debug("content scored",
		"trace_id", TraceIDFromContext(ctx),
		"tab_id", e.TabID,
		"epoch", epoch,
		"score", score,
	)

	return p.correlate(ctx, e.TabID, Result{Epoch: epoch, Score: &score})
}

func (p *Pipeline) onReady(ctx context.Context, e ContentReady) (Result, error) {
	if !p.store.MarkReady(e.TabID, e.Epoch) {
		return skipped(ReasonStale), nil
	}
	return p.correlate(ctx, e.TabID, Result{Epoch: p.store.Snapshot(e.TabID).Epoch})
}

func (p *Pipeline) onClosed(ctx context.Context, e TabClosed) (Result, error) {
	known := p.store.Forget(e.TabID)
	p.enqueue(job{traceID: TraceIDFromContext(ctx), forget: e.TabID})
	if !known {
		return skipped(ReasonUnknownTab), nil
	}
	return Result{}, nil
}

// correlate runs the meta model once all three signals of the current
// navigation are present. A verdict already delivered for this navigation
// is not delivered again until a fresh URL or content signal arrives.
func (p *Pipeline) correlate(ctx context.Context, tab signals.TabID, res Result) (Result, error) {
	snap := p.store.Snapshot(tab)
	if snap.Fired {
		return res, nil
	}

	v, err := p.correlator.Correlate(snap)
	if err != nil {
		ScoringFailuresTotal.WithLabelValues(p.metaName, failureKind(err)).Inc()
		return res, err
	}
	if v == nil {
		return res, nil
	}

	p.store.MarkFired(tab, v.Epoch)
	signals.VerdictsTotal.WithLabelValues(v.Decision()).Inc()
	logger.Info("verdict",
		"trace_id", TraceIDFromContext(ctx),
		"tab_id", v.TabID,
		"epoch", v.Epoch,
		"url", v.URL,
		"probability", v.Probability,
		"decision", v.Decision(),
	)

	res.Verdict = v
	p.enqueue(job{traceID: TraceIDFromContext(ctx), verdict: v})
	return res, nil
}

// enqueue hands j to the delivery goroutine without waiting. When the queue
// is full the job is dropped; jobs that were queued keep their order.
func (p *Pipeline) enqueue(j job) {
	select {
	case p.jobs <- j:
		return
	default:
	}

	kind, tab := jobForget, j.forget
	if j.verdict != nil {
		kind, tab = jobVerdict, j.verdict.TabID
	}
	DeliveriesDroppedTotal.WithLabelValues(kind).Inc()
	logger.Warn("delivery queue full, job dropped",
		"trace_id", j.traceID,
		"job", kind,
		"tab_id", tab,
		"queue_size", cap(p.jobs),
	)
}

func (p *Pipeline) deliverLoop(ctx context.Context) {
	for j := range p.jobs {
		dctx, cancel := context.WithTimeout(WithTraceID(ctx, j.traceID), p.deliveryTimeout)
		var err error
		if j.verdict != nil {
			err = p.sink.Deliver(dctx, *j.verdict)
		} else {
			err = p.sink.Forget(dctx, j.forget)
		}
		cancel()

		if err != nil {
			DeliveryFailuresTotal.Inc()
			logger.Error("verdict delivery failed", "trace_id", j.traceID, "error", err)
		}
	}
}

type nopSink struct{}

func (nopSink) Deliver(context.Context, signals.Verdict) error { return nil }
func (nopSink) Forget(context.Context, signals.TabID) error    { return nil }
