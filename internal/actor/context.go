package actor

// Context is handed to Receive for each message. Sender is nil for
// engine-originated messages (Started/Stopping/Stopped, scheduler ticks).
type Context interface {
	Engine() *Engine
	Self() *PID
	Sender() *PID
	Message() interface{}

	// RequestID is non-empty when the message arrived via Ask; Reply must be
	// called exactly once in that case to unblock the asker.
	RequestID() string
	Reply(result interface{})
}

type actorContext struct {
	engine  *Engine
	self    *PID
	sender  *PID
	message interface{}

	requestID string
	replyCh   chan interface{}
	replied   bool
}

func (c *actorContext) Engine() *Engine      { return c.engine }
func (c *actorContext) Self() *PID           { return c.self }
func (c *actorContext) Sender() *PID         { return c.sender }
func (c *actorContext) Message() interface{} { return c.message }
func (c *actorContext) RequestID() string    { return c.requestID }

func (c *actorContext) Reply(result interface{}) {
	if c.replyCh == nil || c.replied {
		return
	}
	c.replied = true
	c.replyCh <- result
}
