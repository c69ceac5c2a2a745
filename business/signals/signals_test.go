//go:build !integration

package signals

import (
	"errors"
	"testing"

	"phishSentinel/business/ensemble"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// averageMeta scores the mean of the two upstream probabilities.
type averageMeta struct {
	calls int
	err   error
}

func (m *averageMeta) Score(fv ensemble.FeatureVector) (float64, error) {
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	u, okU := fv.Lookup(MetaURLFeature)
	c, okC := fv.Lookup(MetaContentFeature)
	if !okU || !okC {
		return 0, errors.New("meta features missing")
	}
	return (u + c) / 2, nil
}

func TestCorrelatorFiresOnlyWithAllThreeSignals(t *testing.T) {
	const tab TabID = 1

	for mask := 0; mask < 8; mask++ {
		hasURL, hasContent, hasReady := mask&1 != 0, mask&2 != 0, mask&4 != 0

		store := NewStore(4)
		if hasURL {
			store.RecordURLSignal(tab, URLSignal{Score: 0.9, URL: "https://example.test/login"})
		}
		if hasContent {
			assert.Equal(t, hasURL, store.RecordContentSignal(tab, AnyEpoch, ContentSignal{Score: 0.7}))
		}
		if hasReady {
			assert.Equal(t, hasURL, store.MarkReady(tab, AnyEpoch))
		}

		meta := &averageMeta{}
		v, err := NewCorrelator(meta).TryCorrelate(store, tab)
		require.NoError(t, err)

		if mask == 7 {
			require.NotNil(t, v, "mask %03b", mask)
			assert.InDelta(t, 0.8, v.Probability, 1e-12)
			assert.True(t, v.IsPhishing)
			assert.Equal(t, "https://example.test/login", v.URL)
			assert.Equal(t, 1, meta.calls)
			continue
		}
		assert.Nil(t, v, "mask %03b", mask)
		assert.Zero(t, meta.calls, "meta scorer must not run for mask %03b", mask)
	}
}

func TestContentAndReadyArriveInEitherOrder(t *testing.T) {
	store := NewStore(4)
	corr := NewCorrelator(&averageMeta{})

	store.RecordURLSignal(1, URLSignal{Score: 0.2})
	store.MarkReady(1, AnyEpoch)
	v, err := corr.TryCorrelate(store, 1)
	require.NoError(t, err)
	assert.Nil(t, v)
	store.RecordContentSignal(1, AnyEpoch, ContentSignal{Score: 0.4})
	v, err = corr.TryCorrelate(store, 1)
	require.NoError(t, err)
	require.NotNil(t, v)

	store.RecordURLSignal(2, URLSignal{Score: 0.2})
	store.RecordContentSignal(2, AnyEpoch, ContentSignal{Score: 0.4})
	v, err = corr.TryCorrelate(store, 2)
	require.NoError(t, err)
	assert.Nil(t, v)
	store.MarkReady(2, AnyEpoch)
	v, err = corr.TryCorrelate(store, 2)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.False(t, v.IsPhishing)
}

func TestNewNavigationStartsNewEpoch(t *testing.T) {
	store := NewStore(4)
	corr := NewCorrelator(&averageMeta{})

	first := store.RecordURLSignal(7, URLSignal{Score: 0.1, URL: "https://a.test"})
	assert.False(t, store.Snapshot(7).Ready)
	require.True(t, store.MarkReady(7, first))
	require.True(t, store.RecordContentSignal(7, first, ContentSignal{Score: 0.9}))

	second := store.RecordURLSignal(7, URLSignal{Score: 0.95, URL: "https://b.test"})
	assert.Greater(t, second, first)

	snap := store.Snapshot(7)
	assert.False(t, snap.Ready, "ready must be cleared by a new navigation")
	assert.Nil(t, snap.Content, "content from the previous page must not carry over")
	assert.Equal(t, "https://b.test", snap.URL.URL)

	v, err := corr.TryCorrelate(store, 7)
	require.NoError(t, err)
	assert.Nil(t, v)

	// late reports from the first page are dropped
	assert.False(t, store.RecordContentSignal(7, first, ContentSignal{Score: 0.9}))
	assert.False(t, store.MarkReady(7, first))
	snap = store.Snapshot(7)
	assert.Nil(t, snap.Content)
	assert.False(t, snap.Ready)

	require.True(t, store.MarkReady(7, second))
	require.True(t, store.RecordContentSignal(7, second, ContentSignal{Score: 0.85}))
	v, err = corr.TryCorrelate(store, 7)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, second, v.Epoch)
	assert.InDelta(t, 0.9, v.Probability, 1e-12)
}

func TestEvictsLeastRecentlyTouchedTab(t *testing.T) {
	store := NewStore(2)
	store.RecordURLSignal(1, URLSignal{Score: 0.1})
	store.RecordURLSignal(2, URLSignal{Score: 0.2})
	store.RecordURLSignal(3, URLSignal{Score: 0.3})

	assert.False(t, store.Snapshot(1).Known)
	assert.True(t, store.Snapshot(2).Known)
	assert.True(t, store.Snapshot(3).Known)
	assert.Equal(t, []TabID{3, 2}, store.Tabs())
}

func TestTouchKeepsTabAlive(t *testing.T) {
	store := NewStore(2)
	store.RecordURLSignal(1, URLSignal{Score: 0.1})
	store.RecordURLSignal(2, URLSignal{Score: 0.2})
	require.True(t, store.MarkReady(1, AnyEpoch))
	store.RecordURLSignal(3, URLSignal{Score: 0.3})

	assert.True(t, store.Snapshot(1).Known)
	assert.True(t, store.Snapshot(1).Ready)
	assert.False(t, store.Snapshot(2).Known)
	assert.Equal(t, 2, store.Len())
}

func TestWritesForUnknownTabDoNotEvict(t *testing.T) {
	store := NewStore(2)
	store.RecordURLSignal(1, URLSignal{Score: 0.1})
	store.RecordURLSignal(2, URLSignal{Score: 0.2})

	assert.False(t, store.AcceptsContent(9, AnyEpoch))
	assert.False(t, store.RecordContentSignal(9, AnyEpoch, ContentSignal{Score: 0.5}))
	assert.False(t, store.MarkReady(9, AnyEpoch))

	assert.False(t, store.Snapshot(9).Known)
	assert.True(t, store.Snapshot(1).Known)
	assert.Equal(t, []TabID{2, 1}, store.Tabs())

	assert.True(t, store.AcceptsContent(1, AnyEpoch))
	assert.Equal(t, []TabID{2, 1}, store.Tabs(), "checking must not refresh recency")
}

func TestSnapshotHasNoSideEffects(t *testing.T) {
	store := NewStore(2)
	store.RecordURLSignal(1, URLSignal{Score: 0.1})
	store.RecordURLSignal(2, URLSignal{Score: 0.2})

	snap := store.Snapshot(1)
	snap.URL.Score = 42
	store.RecordURLSignal(3, URLSignal{Score: 0.3})

	assert.False(t, store.Snapshot(1).Known, "reading must not refresh recency")
	assert.Equal(t, 0.2, store.Snapshot(2).URL.Score)
}

func TestFiredFlagIsPerEpoch(t *testing.T) {
	store := NewStore(2)
	ep := store.RecordURLSignal(1, URLSignal{Score: 0.1})
	store.RecordContentSignal(1, ep, ContentSignal{Score: 0.1})
	store.MarkReady(1, ep)

	assert.False(t, store.MarkFired(1, ep+1))
	require.True(t, store.MarkFired(1, ep))
	assert.True(t, store.Snapshot(1).Fired)

	// a fresh content report invalidates the delivered verdict
	store.RecordContentSignal(1, ep, ContentSignal{Score: 0.6})
	assert.False(t, store.Snapshot(1).Fired)

	store.MarkFired(1, ep)
	store.RecordURLSignal(1, URLSignal{Score: 0.3})
	assert.False(t, store.Snapshot(1).Fired)
}

func TestForget(t *testing.T) {
	store := NewStore(2)
	store.RecordURLSignal(1, URLSignal{Score: 0.1})
	assert.True(t, store.Forget(1))
	assert.False(t, store.Forget(1))
	assert.Zero(t, store.Len())
	assert.False(t, store.MarkFired(1, 1))
}

func TestCorrelatorPropagatesMetaFailure(t *testing.T) {
	store := NewStore(2)
	store.RecordURLSignal(1, URLSignal{Score: 0.1})
	store.RecordContentSignal(1, AnyEpoch, ContentSignal{Score: 0.1})
	store.MarkReady(1, AnyEpoch)

	boom := &ensemble.NotReadyError{Model: "meta"}
	v, err := NewCorrelator(&averageMeta{err: boom}).TryCorrelate(store, 1)
	assert.Nil(t, v)
	require.ErrorIs(t, err, ensemble.ErrNotReady)
}

func TestThresholdIsStrict(t *testing.T) {
	store := NewStore(2)
	store.RecordURLSignal(1, URLSignal{Score: 0.5})
	store.RecordContentSignal(1, AnyEpoch, ContentSignal{Score: 0.5})
	store.MarkReady(1, AnyEpoch)

	v, err := NewCorrelator(&averageMeta{}).TryCorrelate(store, 1)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 0.5, v.Probability)
	assert.False(t, v.IsPhishing)
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewStore(0).Capacity())
}
