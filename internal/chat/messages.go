package chat

// Join is the per-channel topic actor's subscribe command. The caller must
// have already resolved the channel row (EnsureChannel) before sending it.
type Join struct {
	UserID    string
	Conn      Conn
	ChannelID string
}

// Leave removes one connection from a channel. Conn identifies which
// socket is leaving so a user's other open tabs stay subscribed.
type Leave struct {
	UserID string
	Conn   Conn
}

// Post is a channel message from an already-joined member.
type Post struct {
	UserID  string
	Content string
}
