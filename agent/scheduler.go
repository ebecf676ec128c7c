package agent

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"mcpchat/config"
)

// Summarizer is what the scheduler keeps summarized.
type Summarizer interface {
	SummaryDue() bool
	PersistSummary(ctx context.Context) error
}

// SummaryScheduler periodically persists a summary of the active conversation
// while it has unsummarized messages. Runs never overlap.
type SummaryScheduler struct {
	target   Summarizer
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	ctx    context.Context
}

// NewSummaryScheduler creates a stopped scheduler. Intervals below one
// second run every second.
func NewSummaryScheduler(target Summarizer, interval time.Duration) *SummaryScheduler {
	return &SummaryScheduler{
		target:   target,
		interval: interval,
		log:      config.Component("summary"),
	}
}

// Start schedules the periodic job. Calling Start on a running scheduler
// does nothing.
func (s *SummaryScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(cron.Every(s.interval), cron.FuncJob(s.tick))
	c.Start()
	s.cron = c

	s.log.Debug().Dur("interval", s.interval).Msg("[Summary] Scheduler started")
}

// Running reports whether Start has been called without a matching Stop.
func (s *SummaryScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Stop cancels a summary in progress, waits for it to return and clears the
// schedule. It is safe to call on a scheduler that was never started.
func (s *SummaryScheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}

	cancel()
	<-c.Stop().Done()
	s.log.Debug().Msg("[Summary] Scheduler stopped")
}

func (s *SummaryScheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	s.RunOnce(ctx)
}

// RunOnce persists a summary if one is due. Errors are logged; the next run
// retries since the conversation stays dirty.
func (s *SummaryScheduler) RunOnce(ctx context.Context) {
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if !s.target.SummaryDue() {
		return
	}
	if err := s.target.PersistSummary(ctx); err != nil {
		s.log.Warn().Err(err).Msg("[Summary] Scheduled summary failed")
	}
}
