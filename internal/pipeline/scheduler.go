package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"daybook/internal/config"
	appLog "daybook/internal/log"
)

// Scheduler re-runs the pipeline on the configured refresh schedule.
// Runs never overlap; a tick that arrives while a run is in progress is
// skipped.
type Scheduler struct {
	p     *Pipeline
	cron  *cron.Cron
	after func(path string, err error)

	mu    sync.Mutex
	ctx   context.Context
	entry cron.EntryID
	spec  string
}

// NewScheduler returns a stopped scheduler. after, if set, is called at the
// end of every run.
func NewScheduler(p *Pipeline, after func(path string, err error)) *Scheduler {
	return &Scheduler{
		p:     p,
		cron:  cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		after: after,
		ctx:   context.Background(),
	}
}

// cronSpec evaluates the schedule in the configured timezone unless the
// expression already names one.
func cronSpec(cfg *config.Config) string {
	spec := strings.TrimSpace(cfg.RefreshCron)
	if strings.HasPrefix(spec, "CRON_TZ=") || strings.HasPrefix(spec, "TZ=") || strings.HasPrefix(spec, "@every") {
		return spec
	}
	return "CRON_TZ=" + cfg.Timezone + " " + spec
}

// Reschedule installs the schedule of cfg, replacing the previous one. It is
// a no-op when the schedule did not change.
func (s *Scheduler) Reschedule(cfg *config.Config) error {
	spec := cronSpec(cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry != 0 && spec == s.spec {
		return nil
	}

	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return err
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry, s.spec = id, spec
	appLog.Info("refresh scheduled", "schedule", spec)
	return nil
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	path, err := s.p.Run(ctx)
	if err != nil {
		appLog.Error("scheduled render failed", err)
	}
	if s.after != nil {
		s.after(path, err)
	}
}

// Start runs the scheduler in the background until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
}

// Entries reports how many schedules are installed.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
