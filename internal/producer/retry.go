package producer

import (
	"time"

	"github.com/danielpatrickdp/datasentinel/producer/internal/config"
	"github.com/danielpatrickdp/datasentinel/producer/internal/transport"
)

// #region policy

// Decision tells the loop how to recover from a failed operation.
type Decision struct {
	// Reconnect tears the session down before the next attempt.
	Reconnect bool
	Cooldown  time.Duration
}

// RetryPolicy maps a failure kind onto a recovery decision. No failure is fatal.
type RetryPolicy struct {
	connectCooldown time.Duration
	retryCooldown   time.Duration
}

// NewRetryPolicy creates a policy from the configured cooldowns.
func NewRetryPolicy(cfg config.ProducerConfig) RetryPolicy {
	return RetryPolicy{
		connectCooldown: cfg.ConnectCooldown,
		retryCooldown:   cfg.RetryCooldown,
	}
}

// #endregion policy

// #region decide

// Decide returns the recovery for kind. A failed connect waits the longer
// cooldown; a remote protocol failure keeps the session.
func (p RetryPolicy) Decide(kind transport.Kind) Decision {
	switch kind {
	case transport.KindConnect:
		return Decision{Reconnect: true, Cooldown: p.connectCooldown}
	case transport.KindProtocol:
		return Decision{Reconnect: false, Cooldown: p.retryCooldown}
	default:
		return Decision{Reconnect: true, Cooldown: p.retryCooldown}
	}
}

// #endregion decide
