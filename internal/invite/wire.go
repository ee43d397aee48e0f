package invite

type outInviteSent struct {
	Type      string `json:"type"`
	InviteID  string `json:"inviteId"`
	To        string `json:"to"`
	ExpiresAt int64  `json:"expiresAt"`
}

type outInviteReceived struct {
	Type      string `json:"type"`
	InviteID  string `json:"inviteId"`
	From      string `json:"from"`
	ExpiresAt int64  `json:"expiresAt"`
}

type outInviteAccepted struct {
	Type     string `json:"type"`
	InviteID string `json:"inviteId"`
	MatchID  string `json:"matchId"`
}

type outInviteConfirmed struct {
	Type     string `json:"type"`
	InviteID string `json:"inviteId"`
	MatchID  string `json:"matchId"`
}

type outInviteDeclined struct {
	Type     string `json:"type"`
	InviteID string `json:"inviteId"`
}

type outInviteCancelled struct {
	Type     string `json:"type"`
	InviteID string `json:"inviteId"`
}

type outInviteExpired struct {
	Type     string `json:"type"`
	InviteID string `json:"inviteId"`
	Reason   string `json:"reason"`
}

type outError struct {
	Type string `json:"type"`
	Code string `json:"code"`
}
