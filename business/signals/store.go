package signals

import (
	"container/list"
	"time"

	"phishSentinel/business/ensemble"
)

// DefaultCapacity is the number of tabs kept when no capacity is configured.
const DefaultCapacity = 10

type TabID int

// Epoch identifies one navigation of one tab. Epochs come from a store-wide
// counter, so a tab that is evicted and seen again never reuses an old epoch.
type Epoch uint64

// AnyEpoch accepts a write for whatever navigation the tab currently shows.
// The tab must still be known to the store.
const AnyEpoch Epoch = 0

type URLSignal struct {
	Score      float64
	Features   ensemble.FeatureVector
	URL        string
	RecordedAt time.Time
}

type ContentSignal struct {
	Score      float64
	Features   ensemble.FeatureVector
	RecordedAt time.Time
}

type entry struct {
	tab     TabID
	epoch   Epoch
	url     *URLSignal
	content *ContentSignal
	ready   bool
	fired   bool
	touched time.Time
}

// Snapshot is a read-only copy of one tab's signals.
type Snapshot struct {
	TabID   TabID
	Known   bool
	Epoch   Epoch
	URL     *URLSignal
	Content *ContentSignal
	Ready   bool
	Fired   bool
}

// Store keeps the signals of the most recently touched tabs.
//
// Store is not safe for concurrent use. It is owned by a single event loop
// that applies one event at a time.
type Store struct {
	capacity  int
	entries   map[TabID]*list.Element
	order     *list.List // front is most recently touched
	lastEpoch Epoch
	now       func() time.Time
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		entries:  make(map[TabID]*list.Element, capacity+1),
		order:    list.New(),
		now:      time.Now,
	}
}

func (s *Store) Capacity() int { return s.capacity }

func (s *Store) Len() int { return s.order.Len() }

// Tabs lists tab ids from most to least recently touched.
func (s *Store) Tabs() []TabID {
	out := make([]TabID, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).tab)
	}
	return out
}

// RecordURLSignal starts a new epoch for tab: the URL signal is replaced, the
// content signal and ready flag are cleared. It returns the new epoch.
func (s *Store) RecordURLSignal(tab TabID, sig URLSignal) Epoch {
	e := s.touch(tab)
	s.lastEpoch++
	if sig.RecordedAt.IsZero() {
		sig.RecordedAt = e.touched
	}
	e.epoch = s.lastEpoch
	e.url = &sig
	e.content = nil
	e.ready = false
	e.fired = false

	SignalsRecordedTotal.WithLabelValues(kindURL).Inc()
	return e.epoch
}

// RecordContentSignal overwrites the content signal of tab. A write for a tab
// the store does not hold, or tagged with an epoch other than the tab's
// current one, is dropped and false is returned.
func (s *Store) RecordContentSignal(tab TabID, epoch Epoch, sig ContentSignal) bool {
	if s.stale(tab, epoch) {
		SignalsStaleDroppedTotal.WithLabelValues(kindContent).Inc()
		return false
	}
	e := s.touch(tab)
	if sig.RecordedAt.IsZero() {
		sig.RecordedAt = e.touched
	}
	e.content = &sig
	e.fired = false

	SignalsRecordedTotal.WithLabelValues(kindContent).Inc()
	return true
}

// MarkReady sets the ready flag of tab. Stale epochs are dropped like in
// RecordContentSignal.
func (s *Store) MarkReady(tab TabID, epoch Epoch) bool {
	if s.stale(tab, epoch) {
		SignalsStaleDroppedTotal.WithLabelValues(kindReady).Inc()
		return false
	}
	e := s.touch(tab)
	e.ready = true

	SignalsRecordedTotal.WithLabelValues(kindReady).Inc()
	return true
}

// MarkFired records that a verdict was delivered for epoch. It does not
// refresh recency.
func (s *Store) MarkFired(tab TabID, epoch Epoch) bool {
	el, ok := s.entries[tab]
	if !ok {
		return false
	}
	e := el.Value.(*entry)
	if e.epoch != epoch {
		return false
	}
	e.fired = true
	return true
}

// Snapshot copies the current state of tab without touching recency.
func (s *Store) Snapshot(tab TabID) Snapshot {
	el, ok := s.entries[tab]
	if !ok {
		return Snapshot{TabID: tab}
	}
	e := el.Value.(*entry)
	snap := Snapshot{
		TabID: tab,
		Known: true,
		Epoch: e.epoch,
		Ready: e.ready,
		Fired: e.fired,
	}
	if e.url != nil {
		u := *e.url
		snap.URL = &u
	}
	if e.content != nil {
		c := *e.content
		snap.Content = &c
	}
	return snap
}

// Forget drops everything known about tab.
func (s *Store) Forget(tab TabID) bool {
	el, ok := s.entries[tab]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.entries, tab)
	StoreTabs.Set(float64(s.order.Len()))
	return true
}

// AcceptsContent reports whether a content signal for epoch would be
// recorded, counting the drop when it would not. It does not touch recency.
func (s *Store) AcceptsContent(tab TabID, epoch Epoch) bool {
	if s.stale(tab, epoch) {
		SignalsStaleDroppedTotal.WithLabelValues(kindContent).Inc()
		return false
	}
	return true
}

// stale reports whether a write for epoch must be dropped. Content and ready
// signals only follow a navigation, so an unknown tab is stale for any epoch.
func (s *Store) stale(tab TabID, epoch Epoch) bool {
	el, ok := s.entries[tab]
	if !ok {
		return true
	}
	return epoch != AnyEpoch && el.Value.(*entry).epoch != epoch
}

// touch returns the entry for tab, creating it if needed, moves it to the
// front and evicts from the back while over capacity.
func (s *Store) touch(tab TabID) *entry {
	now := s.now()
	if el, ok := s.entries[tab]; ok {
		s.order.MoveToFront(el)
		e := el.Value.(*entry)
		e.touched = now
		return e
	}

	e := &entry{tab: tab, touched: now}
	s.entries[tab] = s.order.PushFront(e)

	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*entry).tab)
		StoreEvictionsTotal.Inc()
	}
	StoreTabs.Set(float64(s.order.Len()))
	return e
}
