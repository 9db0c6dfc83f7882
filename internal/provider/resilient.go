package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/harrison/orchestra/internal/backoff"
	"github.com/harrison/orchestra/internal/models"
)

// ResilientModel wraps a Model with circuit breaking (sony/gobreaker) and
// usage-limit-aware backoff (internal/backoff), so the usage-limit class of
// TransportError (spec.md §7) is retried once instead of failing the
// iteration outright.
type ResilientModel struct {
	inner   Model
	breaker *gobreaker.CircuitBreaker
	backer  *backoff.TransportBackoff
}

// NewResilientModel wraps inner. name identifies the breaker in metrics/logs.
func NewResilientModel(inner Model, name string, logger backoff.BackoffLogger) *ResilientModel {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &ResilientModel{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		backer:  backoff.NewTransportBackoff(24*time.Hour, 15*time.Second, 30*time.Second, logger),
	}
}

// Complete runs inner.Complete through the circuit breaker. On a detected
// usage-limit error it waits out the reset window (bounded by the backoff's
// max wait) and retries once; other transport failures are surfaced directly.
func (m *ResilientModel) Complete(ctx context.Context, systemPrompt string, conversation []models.Message, onChunk func(string)) (string, error) {
	attempt := func() (string, error) {
		out, err := m.breaker.Execute(func() (interface{}, error) {
			return m.inner.Complete(ctx, systemPrompt, conversation, onChunk)
		})
		if err != nil {
			return "", err
		}
		return out.(string), nil
	}

	result, err := attempt()
	if err == nil {
		return result, nil
	}

	info := backoff.ParseUsageLimitFromError(err.Error())
	if info == nil || !m.backer.ShouldBackoff(info) {
		return result, fmt.Errorf("transport error: %w", err)
	}
	if waitErr := m.backer.Wait(ctx, info); waitErr != nil {
		return result, fmt.Errorf("transport error, waiting out usage limit: %w", waitErr)
	}
	return attempt()
}
