package actor

// Actor is implemented by every component built on the command-queue model.
// Receive is invoked sequentially, once per message, from the actor's own
// goroutine only — it never needs its own locking.
type Actor interface {
	Receive(ctx Context)
}

// Producer constructs a fresh Actor instance when its PID is spawned.
type Producer func() Actor

// Props bundles an actor's construction recipe.
type Props struct {
	produce Producer
}

// NewProps wraps a Producer. Panics on a nil producer since a Props with no
// way to build its actor is always a programming error, never a runtime one.
func NewProps(produce Producer) *Props {
	if produce == nil {
		panic("actor: producer must not be nil")
	}
	return &Props{produce: produce}
}
