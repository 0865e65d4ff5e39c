package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExpirer struct {
	cutoff  time.Time
	expired int64
	err     error
}

func (r *recordingExpirer) MarkExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.cutoff = cutoff
	return r.expired, r.err
}

func TestSweepUsesConfiguredWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expirer := &recordingExpirer{expired: 3}
	s := &Sweeper{
		Orders: expirer,
		After:  time.Hour,
		Now:    func() time.Time { return now },
	}

	err := s.Handle(context.Background(), NewTask())
	require.NoError(t, err)
	assert.Equal(t, now.Add(-time.Hour), expirer.cutoff)
}

func TestSweepPropagatesStoreError(t *testing.T) {
	expirer := &recordingExpirer{err: assert.AnError}
	s := &Sweeper{Orders: expirer, After: time.Hour}

	err := s.Handle(context.Background(), NewTask())
	require.ErrorIs(t, err, assert.AnError)
}
