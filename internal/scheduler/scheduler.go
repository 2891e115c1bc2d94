// Package scheduler runs the reminder sweep on a fixed interval for
// installs without an external periodic trigger. The HTTP trigger
// endpoint works whether or not this service is enabled.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "famplan/pkg/logx"
)

type Config struct {
	Enabled  bool
	Interval time.Duration
}

// Service wraps a single cron entry around the sweep function.
type Service struct {
	mu    sync.Mutex
	cfg   Config
	c     *cron.Cron
	entry cron.EntryID
	log   logx.Logger

	sweep func(ctx context.Context)
}

func New(cfg Config, sweep func(ctx context.Context), log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg,
		sweep: sweep,
		log:   log.With(logx.String("comp", "scheduler")),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	if !s.cfg.Enabled {
		s.log.Debug("internal trigger disabled")
		return
	}
	s.c = cron.New()
	s.scheduleLocked(ctx)
	s.c.Start()
	s.log.Info("internal trigger started", logx.Duration("interval", s.interval()))
}

// Apply reschedules the entry when the configured interval changes.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cfg
	s.cfg = cfg

	if s.c == nil {
		if !cfg.Enabled {
			return
		}
		// Was disabled at startup; bring the cron up now.
		s.c = cron.New()
		s.scheduleLocked(ctx)
		s.c.Start()
		s.log.Info("internal trigger started", logx.Duration("interval", s.interval()))
		return
	}
	if cfg.Enabled == old.Enabled && cfg.Interval == old.Interval {
		return
	}
	if s.entry != 0 {
		s.c.Remove(s.entry)
		s.entry = 0
	}
	if cfg.Enabled {
		s.scheduleLocked(ctx)
		s.log.Info("internal trigger rescheduled", logx.Duration("interval", s.interval()))
	} else {
		s.log.Info("internal trigger disabled")
	}
}

func (s *Service) scheduleLocked(ctx context.Context) {
	iv := s.interval()
	sweep := s.sweep
	s.entry = s.c.Schedule(cron.Every(iv), cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		sweep(ctx)
	}))
}

func (s *Service) interval() time.Duration {
	if s.cfg.Interval < time.Second {
		return time.Minute
	}
	return s.cfg.Interval
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.entry = 0
	s.mu.Unlock()

	if c == nil {
		return
	}
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	s.log.Info("internal trigger stopped")
}
