package duel

import (
	"fmt"
	"time"
)

// Mode selects how a duel picks its questions.
type Mode string

const (
	// ModeBox plays up to BestOf rounds with one pool question each.
	ModeBox Mode = "box"
	// ModeDynamic plays one round per question of the provider's exhaustive set.
	ModeDynamic Mode = "dynamic"
)

const (
	DefaultBestOf       = 3
	DefaultRoundTimeout = 30 * time.Second
	MaxRoundTimeout     = 5 * time.Minute
	MaxBestOf           = 9
)

// Config is what the challenger asks for.
type Config struct {
	Area    string        `json:"area"`
	Points  int           `json:"points"`
	Mode    Mode          `json:"mode"`
	BestOf  int           `json:"best_of,omitempty"`
	Timeout time.Duration `json:"timeout"`
}

// normalized fills defaults and validates the config.
func (c Config) normalized() (Config, error) {
	if c.Area == "" {
		return c, fmt.Errorf("%w: area is required", ErrInvalidConfig)
	}
	if c.Points <= 0 {
		return c, fmt.Errorf("%w: points must be positive", ErrInvalidConfig)
	}
	if c.Mode == "" {
		c.Mode = ModeBox
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultRoundTimeout
	}
	if c.Timeout < time.Second || c.Timeout > MaxRoundTimeout {
		return c, fmt.Errorf("%w: timeout %s out of range", ErrInvalidConfig, c.Timeout)
	}

	switch c.Mode {
	case ModeBox:
		if c.BestOf == 0 {
			c.BestOf = DefaultBestOf
		}
		if c.BestOf < 1 || c.BestOf > MaxBestOf || c.BestOf%2 == 0 {
			return c, fmt.Errorf("%w: best_of must be odd and at most %d", ErrInvalidConfig, MaxBestOf)
		}
	case ModeDynamic:
		c.BestOf = 0
	default:
		return c, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return c, nil
}

// Status is the lifecycle stage of an invite or duel.
type Status string

const (
	StatusInvited    Status = "invited"
	StatusAccepted   Status = "accepted"
	StatusEscrowed   Status = "escrowed"
	StatusInProgress Status = "in_progress"
	StatusSettled    Status = "settled"
	StatusAborted    Status = "aborted"
)
