package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const scopeName = "github.com/yeschef/yeschef-agent/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	cameraStateAppliedCounter = mustInt64Counter("vision.camera_state.applied", "Camera state changes applied after debounce")
	staleNotifiedCounter      = mustInt64Counter("vision.stale.notified", "Frozen-feed notifications sent to the model")
	greetingAttemptsCounter   = mustInt64Counter("vision.greeting.attempts", "Opening utterance generation attempts")
	controlIgnoredCounter     = mustInt64Counter("vision.control.ignored", "Control messages ignored because a track is authoritative or input was malformed")
)

func mustInt64Counter(name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		logger.Warn("failed to create counter", "counter", name, "error", err)
		return noop.Int64Counter{}
	}
	return counter
}
