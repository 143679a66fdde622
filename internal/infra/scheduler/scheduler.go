package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Cycle is one unit of periodic work, such as a watcher poll.
type Cycle interface {
	Name() string
	RunCycle(ctx context.Context)
}

type entry struct {
	cycle    Cycle
	interval time.Duration
}

// WatcherScheduler runs each registered cycle on its own interval. A cycle
// that is still running when its next tick arrives is skipped.
type WatcherScheduler struct {
	cronEngine *cron.Cron
	logger     *logrus.Entry
	entries    []entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWatcherScheduler(logger *logrus.Entry) *WatcherScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &WatcherScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers c to run every interval once the scheduler starts.
func (s *WatcherScheduler) Add(c Cycle, interval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("interval for %s must be at least 1s, got %v", c.Name(), interval)
	}
	spec := fmt.Sprintf("@every %s", interval)
	_, err := s.cronEngine.AddFunc(spec, func() { s.run(c) })
	if err != nil {
		return fmt.Errorf("could not add cron job for %s: %w", c.Name(), err)
	}
	s.entries = append(s.entries, entry{cycle: c, interval: interval})
	return nil
}

// Start runs every cycle once right away, then on its interval.
func (s *WatcherScheduler) Start() {
	s.logger.WithField("watchers", len(s.entries)).Info("Starting watcher scheduler...")
	for _, e := range s.entries {
		e := e
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(e.cycle)
		}()
	}
	s.cronEngine.Start()
	s.logger.Info("Watcher scheduler started.")
}

func (s *WatcherScheduler) run(c Cycle) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{"watcher": c.Name(), "panic": r}).Error("Watcher cycle panicked")
		}
	}()
	if s.ctx.Err() != nil {
		return
	}
	c.RunCycle(s.ctx)
}

// Stop cancels in-flight cycles, including backoff sleeps, and waits for
// them to return.
func (s *WatcherScheduler) Stop() {
	s.logger.Info("Stopping watcher scheduler...")
	s.cancel()
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("Watcher scheduler gracefully stopped.")
}
