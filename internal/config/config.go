// Package config loads and validates process configuration from the
// environment. Every service setting the process reads is declared here
// (cmd/server reads ENV on its own to pick the logger mode), and a
// malformed value aborts startup rather than silently falling back to a
// default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lguibr/pongrt/internal/physics"
)

// Config is the fully validated process configuration.
type Config struct {
	BindHost   string
	BindPort   int
	TrustProxy bool

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	RateLimitInputsPerSecond int
	RateLimitInviteFlood     int

	CORSOrigins []string

	DatabaseURL string

	// 2FA/OAuth flows are handled by a collaborating auth service; their
	// parameters are read here and carried on Config as given. No
	// validation is applied to them.
	TwoFactorIssuer string
	OAuthClientID   string
	OAuthSecret     string

	Physics physics.Config

	InviteTTL            time.Duration
	RematchTTL           time.Duration
	CountdownDuration    time.Duration
	TickInterval         time.Duration
	PostTerminalCleanup  time.Duration
	WebSocketIdlePing    time.Duration
	ReconnectGraceWindow time.Duration
}

// Load reads every variable this process needs and returns an error
// listing every problem found, joined into one message, so deployment
// failures are diagnosable from one log line.
func Load(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	var cfg Config
	var errs []string

	cfg.BindHost = orDefault(getenv("BIND_HOST"), "0.0.0.0")
	cfg.BindPort = intOrDefault(getenv("BIND_PORT"), 8080, &errs, "BIND_PORT")
	cfg.TrustProxy = boolOrDefault(getenv("TRUST_PROXY"), false, &errs, "TRUST_PROXY")

	cfg.AccessTokenSecret = required(getenv("ACCESS_TOKEN_SECRET"), &errs, "ACCESS_TOKEN_SECRET")
	cfg.RefreshTokenSecret = required(getenv("REFRESH_TOKEN_SECRET"), &errs, "REFRESH_TOKEN_SECRET")
	cfg.AccessTokenTTL = durationOrDefault(getenv("ACCESS_TOKEN_TTL"), 15*time.Minute, &errs, "ACCESS_TOKEN_TTL")
	cfg.RefreshTokenTTL = durationOrDefault(getenv("REFRESH_TOKEN_TTL"), 30*24*time.Hour, &errs, "REFRESH_TOKEN_TTL")

	cfg.RateLimitInputsPerSecond = intOrDefault(getenv("RATE_LIMIT_INPUTS_PER_SECOND"), 60, &errs, "RATE_LIMIT_INPUTS_PER_SECOND")
	cfg.RateLimitInviteFlood = intOrDefault(getenv("RATE_LIMIT_INVITE_FLOOD"), 5, &errs, "RATE_LIMIT_INVITE_FLOOD")

	cfg.CORSOrigins = splitNonEmpty(getenv("CORS_ORIGINS"))

	cfg.DatabaseURL = required(getenv("DATABASE_URL"), &errs, "DATABASE_URL")

	cfg.TwoFactorIssuer = orDefault(getenv("TWO_FACTOR_ISSUER"), "pongrt")
	cfg.OAuthClientID = getenv("OAUTH_CLIENT_ID")
	cfg.OAuthSecret = getenv("OAUTH_CLIENT_SECRET")

	cfg.Physics = physics.DefaultConfig()
	if v := getenv("PONG_WINNING_SCORE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, "PONG_WINNING_SCORE must be a positive integer")
		} else {
			cfg.Physics.WinningScore = n
		}
	}

	cfg.InviteTTL = 30 * time.Second
	cfg.RematchTTL = 15 * time.Second
	cfg.CountdownDuration = 3 * time.Second
	cfg.TickInterval = time.Second / 60
	cfg.PostTerminalCleanup = 30 * time.Second
	cfg.WebSocketIdlePing = 30 * time.Second
	cfg.ReconnectGraceWindow = durationOrDefault(getenv("RECONNECT_GRACE_WINDOW"), 5*time.Second, &errs, "RECONNECT_GRACE_WINDOW")

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: invalid environment: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func required(v string, errs *[]string, name string) string {
	if v == "" {
		*errs = append(*errs, name+" is required")
	}
	return v
}

func intOrDefault(v string, def int, errs *[]string, name string) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, name+" must be an integer")
		return def
	}
	return n
}

func boolOrDefault(v string, def bool, errs *[]string, name string) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, name+" must be a boolean")
		return def
	}
	return b
}

func durationOrDefault(v string, def time.Duration, errs *[]string, name string) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, name+" must be a duration (e.g. 30s)")
		return def
	}
	return d
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
