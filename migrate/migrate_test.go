package migrate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dot-do/gitcore/modules/plumbing"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	tier Tier
	mu   sync.Mutex
	data map[plumbing.Hash][]byte
}

func newMemBackend(tier Tier) *memBackend {
	return &memBackend{tier: tier, data: make(map[plumbing.Hash][]byte)}
}

func (b *memBackend) Tier() Tier { return b.tier }

func (b *memBackend) Exists(ctx context.Context, oid plumbing.Hash) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.data[oid]
	return ok, nil
}

func (b *memBackend) Get(ctx context.Context, oid plumbing.Hash) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.data[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (b *memBackend) Put(ctx context.Context, oid plumbing.Hash, r io.Reader, size int64) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[oid] = content
	return nil
}

func (b *memBackend) Delete(ctx context.Context, oid plumbing.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, oid)
	return nil
}

func TestAccessTrackerDecay(t *testing.T) {
	tr := NewAccessTracker(time.Hour)
	oid := plumbing.NewHash("1111111111111111111111111111111111111111")
	now := time.Now()
	tr.RecordAccess(oid, now)
	require.InDelta(t, 1.0, tr.Score(oid, now), 0.001)
	require.InDelta(t, 0.5, tr.Score(oid, now.Add(time.Hour)), 0.01)
}

func TestFindCandidatesAndMigrate(t *testing.T) {
	hot := newMemBackend(TierHot)
	warm := newMemBackend(TierWarm)
	oid := plumbing.NewHash("2222222222222222222222222222222222222222")
	hot.data[oid] = []byte("cold content")

	tracker := NewAccessTracker(0)
	now := time.Now()
	tracker.RecordAccess(oid, now)

	ctrl := NewController(tracker, hot, warm)
	jobs, err := ctrl.FindCandidates(context.Background(), TierHot, TierWarm, 10, now)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	require.NoError(t, ctrl.Migrate(context.Background(), jobs[0]))

	hotExists, _ := hot.Exists(context.Background(), oid)
	require.False(t, hotExists)
	warmExists, _ := warm.Exists(context.Background(), oid)
	require.True(t, warmExists)
}

func TestMigrateBatchConcurrent(t *testing.T) {
	hot := newMemBackend(TierHot)
	cold := newMemBackend(TierCold)
	var jobs []Job
	for i := 0; i < 10; i++ {
		oid := plumbing.NewHash(fmt.Sprintf("%040x", i+1))
		hot.data[oid] = []byte("object")
		jobs = append(jobs, Job{OID: oid, From: TierHot, To: TierCold})
	}
	ctrl := NewController(NewAccessTracker(0), hot, cold)
	require.NoError(t, ctrl.MigrateBatch(context.Background(), jobs, 4))
	for _, j := range jobs {
		ok, _ := cold.Exists(context.Background(), j.OID)
		require.True(t, ok)
	}
}

func TestReadDuringMigrationFallsBackToOtherTier(t *testing.T) {
	hot := newMemBackend(TierHot)
	warm := newMemBackend(TierWarm)
	oid := plumbing.NewHash("4444444444444444444444444444444444444444")
	warm.data[oid] = []byte("moved already")

	ctrl := NewController(NewAccessTracker(0), hot, warm)
	r, tier, err := ctrl.ReadDuringMigration(context.Background(), oid, TierHot)
	require.NoError(t, err)
	require.Equal(t, TierWarm, tier)
	content, _ := io.ReadAll(r)
	require.Equal(t, "moved already", string(content))
}
