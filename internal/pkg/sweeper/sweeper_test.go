package sweeper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CoachHub/internal/pkg/subscription"
)

type fakeJobs struct {
	checks  atomic.Int32
	notifies atomic.Int32
	err     error
}

func (f *fakeJobs) CheckSubscriptions(ctx context.Context) (subscription.SweepResult, error) {
	f.checks.Add(1)
	return subscription.SweepResult{Renewed: 2, Expired: 1}, f.err
}

func (f *fakeJobs) SendNotifications(ctx context.Context) (int, error) {
	f.notifies.Add(1)
	return 3, f.err
}

type memLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
	err      error
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.released = append(l.released, key)
		return nil
	}, true, nil
}

type memRecorder struct {
	checks  [][2]int
	notifies []int
}

func (r *memRecorder) RecordCheck(ctx context.Context, renewed, expired int) error {
	r.checks = append(r.checks, [2]int{renewed, expired})
	return nil
}

func (r *memRecorder) RecordNotify(ctx context.Context, sent int) error {
	r.notifies = append(r.notifies, sent)
	return nil
}

func (r *memRecorder) Snapshot(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{"check_runs": int64(len(r.checks))}, nil
}

func TestRunsAreRecorded(t *testing.T) {
	rec := &memRecorder{}
	m := NewManager(&fakeJobs{}, newMemLocker(), Config{}, WithRecorder(rec))

	_, err := m.RunCheck(context.Background())
	require.NoError(t, err)
	_, err = m.RunNotify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{2, 1}}, rec.checks)
	assert.Equal(t, []int{3}, rec.notifies)
	stats, err := m.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["check_runs"])
}

func TestFailedRunsAreNotRecorded(t *testing.T) {
	rec := &memRecorder{}
	m := NewManager(&fakeJobs{err: errors.New("boom")}, newMemLocker(), Config{}, WithRecorder(rec))

	_, err := m.RunCheck(context.Background())
	require.Error(t, err)
	assert.Empty(t, rec.checks)

	empty := NewManager(&fakeJobs{}, newMemLocker(), Config{})
	stats, err := empty.Stats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestRunCheckHoldsLease(t *testing.T) {
	jobs := &fakeJobs{}
	locker := newMemLocker()
	m := NewManager(jobs, locker, Config{CheckSchedule: "@daily", NotifySchedule: "@daily"})

	res, err := m.RunCheck(context.Background())
	require.NoError(t, err)

	assert.Equal(t, subscription.SweepResult{Renewed: 2, Expired: 1}, res)
	assert.Equal(t, int32(1), jobs.checks.Load())
	assert.Equal(t, []string{checkLeaseKey}, locker.released)
}

func TestRunSkipsWhenLeaseIsHeld(t *testing.T) {
	jobs := &fakeJobs{}
	locker := newMemLocker()
	locker.held[notifyLeaseKey] = true
	m := NewManager(jobs, locker, Config{})

	_, err := m.RunNotify(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Zero(t, jobs.notifies.Load())

	n, err := m.RunCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n.Renewed)
}

func TestRunReleasesLeaseOnJobError(t *testing.T) {
	jobs := &fakeJobs{err: errors.New("db gone")}
	locker := newMemLocker()
	m := NewManager(jobs, locker, Config{})

	_, err := m.RunNotify(context.Background())
	assert.EqualError(t, err, "db gone")
	assert.Equal(t, []string{notifyLeaseKey}, locker.released)
}

func TestRunPropagatesLockerError(t *testing.T) {
	locker := newMemLocker()
	locker.err = errors.New("redis down")
	m := NewManager(&fakeJobs{}, locker, Config{})

	_, err := m.RunCheck(context.Background())
	assert.EqualError(t, err, "redis down")
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	m := NewManager(&fakeJobs{}, newMemLocker(), Config{CheckSchedule: "not a schedule", NotifySchedule: "@daily"})

	assert.Error(t, m.Start())
}

func TestScheduledSweepsRun(t *testing.T) {
	jobs := &fakeJobs{}
	m := NewManager(jobs, newMemLocker(), Config{CheckSchedule: "@every 1s", NotifySchedule: "@every 1s", LockTTL: time.Second})

	require.NoError(t, m.Start())
	require.NoError(t, m.Start())

	assert.Eventually(t, func() bool {
		return jobs.checks.Load() > 0 && jobs.notifies.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m.Stop(ctx)
	m.Stop(ctx)
}
