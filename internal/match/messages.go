package match

import "github.com/lguibr/pongrt/internal/physics"

// Connect is enqueued by the socket endpoint after an upgrade is admitted.
type Connect struct {
	UserID string
	Conn   Conn
}

// Disconnect models transport loss, distinct from an explicit LeaveMatch.
type Disconnect struct {
	UserID string
}

// LeaveMatch models a clean client-initiated close.
type LeaveMatch struct {
	UserID string
}

// Ready is the client's `ready` message.
type Ready struct {
	UserID string
}

// Input is the client's `input` message.
type Input struct {
	UserID     string
	Direction  physics.Direction
	Seq        int64
	ClientTime int64
}

// Pause is the client's `pause` message.
type Pause struct {
	UserID string
}

// Resume is the client's `resume` message.
type Resume struct {
	UserID string
}

// RequestState is the client's `request_state` message.
type RequestState struct {
	UserID string
}

// Forfeit is the client's explicit `forfeit` message.
type Forfeit struct {
	UserID string
}

// RematchRequest/Accept/Decline are the client's rematch messages.
type RematchRequest struct{ UserID string }
type RematchAccept struct{ UserID string }
type RematchDecline struct{ UserID string }

type tickMsg struct{}
type countdownTickMsg struct{}
type cleanupExpireMsg struct{}
type rematchExpireMsg struct{}
