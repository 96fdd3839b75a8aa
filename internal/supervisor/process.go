package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Environment passed to worker processes.
const (
	EnvGeneration    = "FPSTREAMER_GENERATION"
	EnvSupervisorPID = "FPSTREAMER_SUPERVISOR_PID"
)

// ProcessUnit runs the pipeline group as a child process in its own
// process group, so a wedged decoder can be killed along with it.
type ProcessUnit struct {
	generation string
	path       string
	args       []string
	logger     *zap.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	startedAt time.Time
	exitErr   error
	done      chan struct{}
}

// NewProcessUnit creates a unit that runs path with args.
func NewProcessUnit(generation, path string, args []string, logger *zap.Logger) *ProcessUnit {
	return &ProcessUnit{
		generation: generation,
		path:       path,
		args:       args,
		logger:     logger.With(zap.String("generation", generation)),
		done:       make(chan struct{}),
	}
}

// Start launches the child. ctx is not tied to the child's lifetime; only
// Stop ends it.
func (u *ProcessUnit) Start(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cmd != nil {
		return errors.New("unit already started")
	}

	cmd := exec.Command(u.path, u.args...)
	cmd.Env = append(os.Environ(),
		EnvGeneration+"="+u.generation,
		EnvSupervisorPID+"="+strconv.Itoa(os.Getpid()),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting worker process: %w", err)
	}
	u.cmd = cmd
	u.startedAt = time.Now()
	u.logger.Info("worker process started", zap.Int("pid", cmd.Process.Pid))

	go func() {
		err := cmd.Wait()
		u.mu.Lock()
		u.exitErr = err
		u.mu.Unlock()
		u.logger.Info("worker process exited", zap.Int("pid", cmd.Process.Pid), zap.Error(err))
		close(u.done)
	}()
	return nil
}

func (u *ProcessUnit) Done() <-chan struct{} {
	return u.done
}

func (u *ProcessUnit) Alive() bool {
	u.mu.Lock()
	started := u.cmd != nil
	u.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-u.done:
		return false
	default:
		return true
	}
}

// Stop sends SIGTERM to the child's process group, waits up to grace,
// then SIGKILLs the group.
func (u *ProcessUnit) Stop(grace time.Duration) error {
	u.mu.Lock()
	cmd := u.cmd
	u.mu.Unlock()
	if cmd == nil || !u.Alive() {
		return nil
	}

	pid := cmd.Process.Pid
	u.logger.Info("stopping worker process", zap.Int("pid", pid))
	if err := terminate(cmd); err != nil {
		u.logger.Warn("terminate failed", zap.Int("pid", pid), zap.Error(err))
	}
	if u.wait(grace) {
		return nil
	}

	u.logger.Warn("worker process ignored terminate, killing", zap.Int("pid", pid))
	if err := kill(cmd); err != nil {
		u.logger.Warn("kill failed", zap.Int("pid", pid), zap.Error(err))
	}
	if u.wait(grace) {
		return nil
	}
	return ErrStopTimeout
}

func (u *ProcessUnit) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-u.done:
		return true
	case <-t.C:
		return false
	}
}

// ExitErr returns the child's exit error once Done is closed.
func (u *ProcessUnit) ExitErr() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.exitErr
}

func (u *ProcessUnit) Info() UnitInfo {
	u.mu.Lock()
	defer u.mu.Unlock()
	info := UnitInfo{Generation: u.generation, StartedAt: u.startedAt}
	if u.cmd != nil {
		info.PID = u.cmd.Process.Pid
	}
	return info
}
