package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/citysort/citysort/internal/core/domain"
	"github.com/citysort/citysort/internal/infrastructure/resilience"
)

// connectivityErrors are worth another attempt: the server may be back
// before the retry budget runs out, and the worker's poll loop covers any
// signal that is ultimately lost.
var connectivityErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrReconnectBufExceeded,
}

func classifySignalError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The caller gave up; neither retrying nor penalizing the broker helps.
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	for _, connErr := range connectivityErrors {
		if errors.Is(err, connErr) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// markTemporary tags broker connectivity failures so callers can tell a
// transient publish problem from a misconfigured subject.
func markTemporary(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifySignalError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "signal publish", err)
	}
	return err
}
