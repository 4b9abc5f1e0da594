// Package observability provides metrics and structured logging for the
// agent session server.
//
// # Overview
//
// Two of the three pillars the teacher's nexus carried are relevant here:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//
// Distributed tracing (OpenTelemetry spans across services) is out of
// scope: spec §9 pins structured, redacted logging as the only
// observability path this single local server needs, with a concrete
// OTLP exporter explicitly deferred. See DESIGN.md's "Dropped
// teacher/pack deps" entry for go.opentelemetry.io/otel/exporters/....
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - LLM API request latency and token usage
//   - Tool execution performance
//   - Error rates by component and type
//   - Active session counts
//   - EventBus dropped-event counts
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	// Track LLM requests
//	start := time.Now()
//	// ... make LLM request ...
//	metrics.RecordLLMRequest("anthropic", "claude-sonnet-4-20250514", "success",
//	    time.Since(start).Seconds(), promptTokens, completionTokens)
//
//	// Track tool execution
//	start = time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("web_search", "success", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, sessionID)
//
//	logger.Info(ctx, "processing turn",
//	    "session_id", sessionID,
//	    "message_length", len(content),
//	)
//
//	logger.Error(ctx, "llm request failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // redacted automatically
//	)
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Testing
//
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
package observability
