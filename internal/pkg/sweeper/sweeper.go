package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/ManuelReschke/CoachHub/internal/pkg/env"
	"github.com/ManuelReschke/CoachHub/internal/pkg/subscription"
)

const (
	checkLeaseKey  = "subscriptions:check"
	notifyLeaseKey = "subscriptions:notify"
)

// ErrBusy is returned by the Run* methods when another run holds the lease.
var ErrBusy = errors.New("sweep already running")

// Jobs are the sweeps the manager schedules. *subscription.Service implements it.
type Jobs interface {
	CheckSubscriptions(ctx context.Context) (subscription.SweepResult, error)
	SendNotifications(ctx context.Context) (int, error)
}

// Locker serializes sweep runs across instances. *cache.Leaser implements it.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// Recorder keeps running totals of sweep outcomes. *counter.SweepCounters implements it.
type Recorder interface {
	RecordCheck(ctx context.Context, renewed, expired int) error
	RecordNotify(ctx context.Context, sent int) error
	Snapshot(ctx context.Context) (map[string]int64, error)
}

// Config controls schedules and lease length.
type Config struct {
	CheckSchedule  string
	NotifySchedule string
	LockTTL        time.Duration
}

// ConfigFromEnv reads SUBSCRIPTION_*_SCHEDULE and SWEEP_LOCK_TTL_SECONDS.
func ConfigFromEnv() Config {
	return Config{
		CheckSchedule:  env.GetEnv("SUBSCRIPTION_CHECK_SCHEDULE", "0 0 * * *"),
		NotifySchedule: env.GetEnv("SUBSCRIPTION_NOTIFY_SCHEDULE", "0 9 * * *"),
		LockTTL:        time.Duration(env.GetEnvInt("SWEEP_LOCK_TTL_SECONDS", 300)) * time.Second,
	}
}

// Manager runs the subscription sweeps on a cron schedule.
type Manager struct {
	jobs     Jobs
	locker   Locker
	recorder Recorder
	cfg      Config
	cron     *cron.Cron
	mu       sync.Mutex
	running  bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder records the outcome of every successful run.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

func NewManager(jobs Jobs, locker Locker, cfg Config, opts ...Option) *Manager {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	m := &Manager{jobs: jobs, locker: locker, cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start registers both sweeps and starts the scheduler.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	c := cron.New(cron.WithChain(cron.Recover(cronLogger{})))
	if _, err := c.AddFunc(m.cfg.CheckSchedule, m.scheduledCheck); err != nil {
		return fmt.Errorf("schedule subscription check %q: %w", m.cfg.CheckSchedule, err)
	}
	if _, err := c.AddFunc(m.cfg.NotifySchedule, m.scheduledNotify); err != nil {
		return fmt.Errorf("schedule subscription notifications %q: %w", m.cfg.NotifySchedule, err)
	}

	c.Start()
	m.cron = c
	m.running = true
	log.Infof("[Sweeper] Started (check %q, notify %q)", m.cfg.CheckSchedule, m.cfg.NotifySchedule)
	return nil
}

// Stop halts scheduling and waits for running sweeps or ctx.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	log.Info("[Sweeper] Stopping...")
	select {
	case <-m.cron.Stop().Done():
	case <-ctx.Done():
		log.Warn("[Sweeper] Stop timed out while a sweep was running")
	}
	m.running = false
	log.Info("[Sweeper] Stopped")
}

// RunCheck runs the expiry/renewal sweep once under the lease.
func (m *Manager) RunCheck(ctx context.Context) (subscription.SweepResult, error) {
	var res subscription.SweepResult
	err := m.withLease(ctx, checkLeaseKey, func(ctx context.Context) error {
		var err error
		res, err = m.jobs.CheckSubscriptions(ctx)
		return err
	})
	if err == nil && m.recorder != nil {
		if rerr := m.recorder.RecordCheck(ctx, res.Renewed, res.Expired); rerr != nil {
			log.Warnf("[Sweeper] Could not record check run: %v", rerr)
		}
	}
	return res, err
}

// RunNotify runs the notification sweep once under the lease.
func (m *Manager) RunNotify(ctx context.Context) (int, error) {
	var n int
	err := m.withLease(ctx, notifyLeaseKey, func(ctx context.Context) error {
		var err error
		n, err = m.jobs.SendNotifications(ctx)
		return err
	})
	if err == nil && m.recorder != nil {
		if rerr := m.recorder.RecordNotify(ctx, n); rerr != nil {
			log.Warnf("[Sweeper] Could not record notification run: %v", rerr)
		}
	}
	return n, err
}

// Stats returns the recorded sweep totals, empty without a recorder.
func (m *Manager) Stats(ctx context.Context) (map[string]int64, error) {
	if m.recorder == nil {
		return map[string]int64{}, nil
	}
	return m.recorder.Snapshot(ctx)
}

func (m *Manager) scheduledCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.LockTTL)
	defer cancel()

	res, err := m.RunCheck(ctx)
	switch {
	case errors.Is(err, ErrBusy):
		log.Info("[Sweeper] Subscription check skipped, another instance is running it")
	case err != nil:
		log.Errorf("[Sweeper] Subscription check failed: %v", err)
	default:
		log.Infof("[Sweeper] Subscription check done: %d renewed, %d expired", res.Renewed, res.Expired)
	}
}

func (m *Manager) scheduledNotify() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.LockTTL)
	defer cancel()

	n, err := m.RunNotify(ctx)
	switch {
	case errors.Is(err, ErrBusy):
		log.Info("[Sweeper] Notification sweep skipped, another instance is running it")
	case err != nil:
		log.Errorf("[Sweeper] Notification sweep failed: %v", err)
	default:
		log.Infof("[Sweeper] Notification sweep done: %d sent", n)
	}
}

func (m *Manager) withLease(ctx context.Context, key string, fn func(context.Context) error) error {
	release, ok, err := m.locker.TryAcquire(ctx, key, m.cfg.LockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBusy
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			log.Warnf("[Sweeper] %v", err)
		}
	}()
	return fn(ctx)
}

// cronLogger routes cron's own messages (mostly recovered panics) to the app log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debugf("[Sweeper] cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Errorf("[Sweeper] cron: %s: %v %v", msg, err, keysAndValues)
}
