package actor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Engine owns every live actor in the process: each actor is reached
// through a PID handed out by Spawn.
type Engine struct {
	pidCounter uint64
	actors     map[string]*process
	mu         sync.RWMutex
	stopping   atomic.Bool
	log        *zap.SugaredLogger
}

// NewEngine creates an actor engine. Passing a nil logger installs a no-op
// one so tests don't need to wire logging just to spawn actors.
func NewEngine(log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{actors: make(map[string]*process), log: log}
}

func (e *Engine) nextPID() *PID {
	id := atomic.AddUint64(&e.pidCounter, 1)
	return &PID{id: fmt.Sprintf("actor-%d", id)}
}

// Spawn starts a new actor and returns its PID, or nil if the engine is
// shutting down.
func (e *Engine) Spawn(props *Props) *PID {
	if e.stopping.Load() {
		return nil
	}
	pid := e.nextPID()
	proc := newProcess(e, pid, props)

	e.mu.Lock()
	e.actors[pid.id] = proc
	e.mu.Unlock()

	go proc.run()
	return pid
}

// Send delivers message to pid asynchronously; sender may be nil for
// engine-originated sends (scheduler ticks, HTTP-handler-originated commands).
func (e *Engine) Send(pid *PID, message interface{}, sender *PID) {
	if pid == nil {
		return
	}
	e.mu.RLock()
	proc, ok := e.actors[pid.id]
	e.mu.RUnlock()
	if !ok {
		return
	}
	proc.send(&envelope{sender: sender, message: message})
}

// Ask delivers message and blocks until the actor calls ctx.Reply or ctx
// finishes without replying (result is nil), or ctx is done.
func (e *Engine) Ask(ctx context.Context, pid *PID, message interface{}) (interface{}, error) {
	if pid == nil {
		return nil, fmt.Errorf("actor: ask on nil pid")
	}
	e.mu.RLock()
	proc, ok := e.actors[pid.id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("actor: %s not found", pid)
	}

	replyCh := make(chan interface{}, 1)
	proc.send(&envelope{message: message, requestID: e.nextPID().id, replyCh: replyCh})

	select {
	case result := <-replyCh:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop requests pid to drain and exit; safe to call multiple times.
func (e *Engine) Stop(pid *PID) {
	if pid == nil {
		return
	}
	e.mu.RLock()
	proc, ok := e.actors[pid.id]
	e.mu.RUnlock()
	if !ok {
		return
	}
	proc.send(&envelope{message: Stopping{}})
}

func (e *Engine) remove(pid *PID) {
	e.mu.Lock()
	delete(e.actors, pid.id)
	e.mu.Unlock()
}

// Count reports the number of live actors; used by health checks.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.actors)
}

// Shutdown stops every actor and waits up to timeout for them to drain.
func (e *Engine) Shutdown(timeout time.Duration) {
	if !e.stopping.CompareAndSwap(false, true) {
		return
	}

	e.mu.RLock()
	pids := make([]*PID, 0, len(e.actors))
	for _, proc := range e.actors {
		pids = append(pids, proc.pid)
	}
	e.mu.RUnlock()

	for _, pid := range pids {
		e.Stop(pid)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.Count() == 0 {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}

	if remaining := e.Count(); remaining > 0 {
		e.log.Warnw("shutdown timeout with actors still running", "remaining", remaining)
	}
}
