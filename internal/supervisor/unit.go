// Package supervisor keeps one pipeline group alive, restarting its
// execution unit when it dies, gets too old, or its restart schedule fires.
package supervisor

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"
)

// ErrStopTimeout is returned when a unit is still running after Stop gave
// up waiting for it.
var ErrStopTimeout = errors.New("unit did not stop in time")

// Unit is one execution of a pipeline group.
type Unit interface {
	// Start launches the unit and returns once it is running.
	Start(ctx context.Context) error
	// Done is closed when the unit has exited.
	Done() <-chan struct{}
	Alive() bool
	// Stop asks the unit to exit, escalating after grace where the unit
	// supports it, and waits for it.
	Stop(grace time.Duration) error
	Info() UnitInfo
}

// UnitInfo identifies a running unit.
type UnitInfo struct {
	Generation string    `json:"generation"`
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"startedAt"`
}

// Factory creates the unit for a new generation.
type Factory func(generation string) Unit

// FuncUnit runs a function in a goroutine of the current process. Stop
// cancels its context; a function that ignores cancellation cannot be
// killed and Stop reports ErrStopTimeout.
type FuncUnit struct {
	generation string
	run        func(ctx context.Context) error

	mu        sync.Mutex
	cancel    context.CancelFunc
	startedAt time.Time
	err       error
	done      chan struct{}
}

// NewFuncUnit creates a unit that runs fn.
func NewFuncUnit(generation string, fn func(ctx context.Context) error) *FuncUnit {
	return &FuncUnit{
		generation: generation,
		run:        fn,
		done:       make(chan struct{}),
	}
}

func (u *FuncUnit) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cancel != nil {
		return errors.New("unit already started")
	}
	ctx, u.cancel = context.WithCancel(ctx)
	u.startedAt = time.Now()
	go func() {
		err := u.run(ctx)
		u.mu.Lock()
		u.err = err
		u.mu.Unlock()
		close(u.done)
	}()
	return nil
}

func (u *FuncUnit) Done() <-chan struct{} {
	return u.done
}

func (u *FuncUnit) Alive() bool {
	select {
	case <-u.done:
		return false
	default:
		u.mu.Lock()
		defer u.mu.Unlock()
		return u.cancel != nil
	}
}

func (u *FuncUnit) Stop(grace time.Duration) error {
	u.mu.Lock()
	cancel := u.cancel
	u.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-u.done:
		return nil
	case <-t.C:
		return ErrStopTimeout
	}
}

// Err returns what the function returned, once Done is closed.
func (u *FuncUnit) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

func (u *FuncUnit) Info() UnitInfo {
	u.mu.Lock()
	defer u.mu.Unlock()
	return UnitInfo{Generation: u.generation, PID: os.Getpid(), StartedAt: u.startedAt}
}
