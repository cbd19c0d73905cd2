package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var ErrGreetingExhausted = errors.New("opening utterance attempts exhausted")

type greeter struct {
	clock    clock.Clock
	warmUp   time.Duration
	attempts int
	backoff  time.Duration
	generate func(ctx context.Context, instructions string) error
}

// send waits out the warm-up, then tries the opening utterance up to the
// configured number of attempts, backing off backoff*attempt after each
// failure.
func (g *greeter) send(ctx context.Context, instructions string) error {
	ctx, span := tracer.Start(ctx, "send opening utterance")
	defer span.End()

	if err := sleep(ctx, g.clock, g.warmUp); err != nil {
		return fmt.Errorf("greeting warm-up interrupted: %w", err)
	}

	var errs error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		err := g.attempt(ctx, attempt, instructions)
		if err == nil {
			return nil
		}
		errs = errors.Join(errs, err)

		logger.WarnContext(ctx, "greeting attempt failed",
			"attempt", attempt, "max_attempts", g.attempts, "error", err)

		if attempt < g.attempts {
			if err := sleep(ctx, g.clock, time.Duration(attempt)*g.backoff); err != nil {
				return fmt.Errorf("greeting backoff interrupted: %w", err)
			}
		}
	}

	recordedErr := fmt.Errorf("%w: %w", ErrGreetingExhausted, errs)
	span.RecordError(recordedErr)
	span.SetStatus(codes.Error, recordedErr.Error())
	logger.ErrorContext(ctx, "all greeting attempts failed, user will need to speak first", "attempts", g.attempts)
	return recordedErr
}

func (g *greeter) attempt(ctx context.Context, attempt int, instructions string) (err error) {
	ctx, span := tracer.Start(ctx, "greeting attempt", trace.WithAttributes(attribute.Int("greeting.attempt", attempt)))
	defer span.End()

	greetingAttemptsCounter.Add(ctx, 1, metric.WithAttributes(attribute.Int("greeting.attempt", attempt)))

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("greeting generation panicked: %v", recovered)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return g.generate(ctx, instructions)
}
