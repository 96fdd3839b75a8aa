package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/metrics"
)

// Supervisor states.
const (
	StateStarting   = "starting"
	StateWatching   = "watching"
	StateRestarting = "restarting"
	StateStopped    = "stopped"
)

// Restart reasons, used in logs, status and metric labels.
const (
	ReasonInitial  = "initial"
	ReasonDead     = "dead"
	ReasonMaxAge   = "max_age"
	ReasonSchedule = "schedule"
)

// Options tune the watchdog loop.
type Options struct {
	PollInterval time.Duration
	// MaxAge forces a restart of a healthy unit; zero disables it.
	MaxAge time.Duration
	// Schedule forces restarts at wall-clock times; nil disables it.
	Schedule  cron.Schedule
	StopGrace time.Duration
	Sampler   Sampler
	// OnAlive is called whenever the unit's liveness changes.
	OnAlive func(alive bool)
}

// Status is a snapshot of the supervisor.
type Status struct {
	State       string    `json:"state"`
	Unit        UnitInfo  `json:"unit"`
	Alive       bool      `json:"alive"`
	Restarts    int       `json:"restarts"`
	LastReason  string    `json:"lastReason,omitempty"`
	LastRestart time.Time `json:"lastRestart,omitempty"`
	NextForced  time.Time `json:"nextForced,omitempty"`
	Stats       ProcStats `json:"stats"`
}

// Supervisor keeps exactly one unit running.
type Supervisor struct {
	factory Factory
	opts    Options
	logger  *zap.Logger
	now     func() time.Time

	mu          sync.Mutex
	state       string
	unit        Unit
	alive       bool
	restarts    int
	lastReason  string
	lastRestart time.Time
	nextSched   time.Time
	stats       ProcStats
}

// New creates a supervisor that builds units with factory.
func New(factory Factory, opts Options, logger *zap.Logger) *Supervisor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = 5 * time.Second
	}
	return &Supervisor{
		factory: factory,
		opts:    opts,
		logger:  logger.With(zap.String("component", "supervisor")),
		now:     time.Now,
		state:   StateStarting,
	}
}

// Run starts the first unit and watches it until ctx is cancelled, then
// stops the current unit and returns.
func (s *Supervisor) Run(ctx context.Context) error {
	s.replace(ctx, ReasonInitial)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-s.unitDone():
			s.replace(ctx, ReasonDead)
		case <-ticker.C:
			if reason := s.check(); reason != "" {
				s.replace(ctx, reason)
			}
		}
	}
}

// check returns why the current unit should be replaced, if it should.
func (s *Supervisor) check() string {
	s.mu.Lock()
	unit := s.unit
	s.mu.Unlock()

	if unit == nil || !unit.Alive() {
		return ReasonDead
	}
	now := s.now()
	info := unit.Info()
	if s.opts.MaxAge > 0 && now.Sub(info.StartedAt) >= s.opts.MaxAge {
		return ReasonMaxAge
	}
	s.mu.Lock()
	next := s.nextSched
	s.mu.Unlock()
	if !next.IsZero() && !now.Before(next) {
		return ReasonSchedule
	}
	s.sample(info.PID)
	return ""
}

func (s *Supervisor) replace(ctx context.Context, reason string) {
	s.mu.Lock()
	old := s.unit
	s.state = StateRestarting
	s.mu.Unlock()

	if old != nil {
		s.setAlive(false)
		if err := old.Stop(s.opts.StopGrace); err != nil {
			s.logger.Error("previous unit did not stop", zap.String("generation", old.Info().Generation), zap.Error(err))
		}
	}

	generation := uuid.NewString()
	unit := s.factory(generation)
	logger := s.logger.With(zap.String("generation", generation), zap.String("reason", reason))

	if err := unit.Start(ctx); err != nil {
		logger.Error("unit start failed", zap.Error(err))
		s.mu.Lock()
		s.unit = nil
		s.mu.Unlock()
		return
	}

	now := s.now()
	s.mu.Lock()
	s.unit = unit
	s.state = StateWatching
	if reason != ReasonInitial {
		s.restarts++
		s.lastRestart = now
	}
	s.lastReason = reason
	s.nextSched = time.Time{}
	if s.opts.Schedule != nil {
		s.nextSched = s.opts.Schedule.Next(now)
	}
	s.mu.Unlock()

	if reason != ReasonInitial {
		metrics.RestartsTotal.WithLabelValues(reason).Inc()
	}
	s.setAlive(true)
	logger.Info("unit started", zap.Int("pid", unit.Info().PID))
}

func (s *Supervisor) shutdown() {
	s.mu.Lock()
	unit := s.unit
	s.mu.Unlock()
	if unit != nil {
		if err := unit.Stop(s.opts.StopGrace); err != nil {
			s.logger.Error("unit did not stop", zap.Error(err))
		}
	}
	s.setAlive(false)
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.logger.Info("supervisor stopped")
}

// unitDone returns the current unit's Done channel, or nil (blocks
// forever in select) when no unit is running.
func (s *Supervisor) unitDone() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unit == nil {
		return nil
	}
	return s.unit.Done()
}

func (s *Supervisor) sample(pid int) {
	if s.opts.Sampler == nil || pid <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.PollInterval)
	defer cancel()
	stats, err := s.opts.Sampler(ctx, pid)
	if err != nil {
		s.logger.Debug("process sample failed", zap.Int("pid", pid), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
	metrics.UnitRSSBytes.Set(float64(stats.RSSBytes))
	metrics.UnitCPUPercent.Set(stats.CPUPercent)
}

func (s *Supervisor) setAlive(alive bool) {
	s.mu.Lock()
	changed := s.alive != alive
	s.alive = alive
	s.mu.Unlock()
	if alive {
		metrics.UnitAlive.Set(1)
	} else {
		metrics.UnitAlive.Set(0)
	}
	if changed && s.opts.OnAlive != nil {
		s.opts.OnAlive(alive)
	}
}

// Status can be called from any goroutine.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:       s.state,
		Alive:       s.alive,
		Restarts:    s.restarts,
		LastReason:  s.lastReason,
		LastRestart: s.lastRestart,
		NextForced:  s.nextSched,
		Stats:       s.stats,
	}
	if s.unit != nil {
		st.Unit = s.unit.Info()
		if s.opts.MaxAge > 0 {
			byAge := st.Unit.StartedAt.Add(s.opts.MaxAge)
			if st.NextForced.IsZero() || byAge.Before(st.NextForced) {
				st.NextForced = byAge
			}
		}
	}
	return st
}
