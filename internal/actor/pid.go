// Package actor implements the single-writer command-queue primitive used by
// every stateful component in the core: each match, each invitation broker,
// each tournament, and each chat topic is one actor. All mutation of actor
// state happens inside that actor's Receive method, reached only through its
// mailbox, so no two goroutines ever touch the same state concurrently.
package actor

// PID (process id) is an opaque reference to a running actor.
type PID struct {
	id string
}

func (p *PID) String() string {
	if p == nil {
		return "<nil>"
	}
	return p.id
}
