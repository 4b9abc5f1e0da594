package agent

import "github.com/mweinbach/agent-coworker-sub008/pkg/models"

// TelemetryRecorder observes a turn's stream and step boundaries for
// out-of-core export. Grounded on the teacher's observability tracer
// (internal/observability/tracing.go) — spec §9's open question is resolved
// by unifying on the runtime-tracer's redact-at-emit semantics and retiring
// the legacy direct-OTLP-HTTP path (DESIGN.md). A no-op implementation is
// always injected so callers never nil-check it (spec §9's StreamSink note
// applied here too).
type TelemetryRecorder interface {
	RecordStreamPart(sessionID string, part models.StreamPart)
	RecordStepStart(sessionID string, step int, streamOptions any)
	RecordStepEnd(sessionID string, step int, usage models.Usage, reason models.FinishReason)
	RecordError(sessionID string, err error)
}

// noopTelemetry discards everything. The default TurnOrchestrator recorder.
type noopTelemetry struct{}

func (noopTelemetry) RecordStreamPart(string, models.StreamPart)          {}
func (noopTelemetry) RecordStepStart(string, int, any)                    {}
func (noopTelemetry) RecordStepEnd(string, int, models.Usage, models.FinishReason) {}
func (noopTelemetry) RecordError(string, error)                           {}

// NoopTelemetry returns the shared no-op recorder.
func NoopTelemetry() TelemetryRecorder { return noopTelemetry{} }

// RedactingTelemetry wraps an inner recorder, applying spec §4.4's
// redaction rule to RecordStepStart's streamOptions before forwarding.
type RedactingTelemetry struct {
	Inner        TelemetryRecorder
	RecordInputs bool
}

func (r RedactingTelemetry) RecordStreamPart(sessionID string, part models.StreamPart) {
	r.Inner.RecordStreamPart(sessionID, part)
}

func (r RedactingTelemetry) RecordStepStart(sessionID string, step int, streamOptions any) {
	if r.RecordInputs {
		streamOptions = RedactStreamOptions(streamOptions)
	} else {
		streamOptions = nil
	}
	r.Inner.RecordStepStart(sessionID, step, streamOptions)
}

func (r RedactingTelemetry) RecordStepEnd(sessionID string, step int, usage models.Usage, reason models.FinishReason) {
	r.Inner.RecordStepEnd(sessionID, step, usage, reason)
}

func (r RedactingTelemetry) RecordError(sessionID string, err error) {
	r.Inner.RecordError(sessionID, err)
}
