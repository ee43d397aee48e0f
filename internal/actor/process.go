package actor

import (
	"runtime/debug"
	"sync/atomic"

	"go.uber.org/zap"
)

const defaultMailboxSize = 1024

// process is the running instance behind a PID: its goroutine, mailbox, and
// actor value. Nothing outside this file ever reads or writes actor state
// directly — every interaction is a message on the mailbox channel.
type process struct {
	engine  *Engine
	pid     *PID
	actor   Actor
	mailbox chan *envelope
	props   *Props
	stopCh  chan struct{}
	stopped atomic.Bool
	log     *zap.SugaredLogger
}

func newProcess(engine *Engine, pid *PID, props *Props) *process {
	return &process{
		engine:  engine,
		pid:     pid,
		props:   props,
		mailbox: make(chan *envelope, defaultMailboxSize),
		stopCh:  make(chan struct{}),
		log:     engine.log.With("actor", pid.id),
	}
}

// send enqueues a message without blocking. A full mailbox means the actor
// is wedged or the engine is overloaded; the message is dropped and logged
// rather than stalling the caller, matching the no-blocking-the-tick-loop
// requirement on every command queue in the system.
func (p *process) send(env *envelope) {
	_, isStopping := env.message.(Stopping)
	_, isStopped := env.message.(Stopped)
	if p.stopped.Load() && !isStopping && !isStopped {
		if env.replyCh != nil {
			env.replyCh <- nil
		}
		return
	}

	select {
	case p.mailbox <- env:
	default:
		p.log.Warnw("mailbox full, dropping message", "type", messageType(env.message))
		if env.replyCh != nil {
			env.replyCh <- nil
		}
	}
}

func (p *process) run() {
	defer func() {
		p.stopped.Store(true)
		if r := recover(); r != nil {
			p.log.Errorw("panic during shutdown", "recover", r, "stack", string(debug.Stack()))
		}
		if p.actor != nil {
			p.invoke(&envelope{message: Stopped{}})
		}
		p.engine.remove(p.pid)
	}()

	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("actor panicked", "recover", r, "stack", string(debug.Stack()))
			p.stopped.Store(true)
			select {
			case <-p.stopCh:
			default:
				close(p.stopCh)
			}
		}
	}()

	p.actor = p.props.produce()
	if p.actor == nil {
		panic("actor: producer returned nil actor")
	}
	p.invoke(&envelope{message: Started{}})

	for {
		select {
		case <-p.stopCh:
			return
		case env := <-p.mailbox:
			if p.stopped.Load() {
				if env.replyCh != nil {
					env.replyCh <- nil
				}
				continue
			}
			if _, ok := env.message.(Stopping); ok {
				p.stopped.Store(true)
				p.invoke(env)
				close(p.stopCh)
				continue
			}
			p.invoke(env)
		}
	}
}

func (p *process) invoke(env *envelope) {
	ctx := &actorContext{
		engine:    p.engine,
		self:      p.pid,
		sender:    env.sender,
		message:   env.message,
		requestID: env.requestID,
		replyCh:   env.replyCh,
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("panic in Receive", "recover", r, "type", messageType(env.message), "stack", string(debug.Stack()))
			ctx.Reply(nil)
		}
	}()
	p.actor.Receive(ctx)
	// Unblock an Ask whose handler returned without replying.
	ctx.Reply(nil)
}

func messageType(msg interface{}) string {
	if msg == nil {
		return "<nil>"
	}
	return sprintType(msg)
}
