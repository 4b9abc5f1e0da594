package agent

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

// DefaultMaxToolResultSize is the default maximum size for tool result text
// (64KB), preventing memory exhaustion and excessive transcript growth.
const DefaultMaxToolResultSize = 64 * 1024

// builtinSecretPatterns detects secrets embedded in free-text tool output
// (shell stdout, file contents) that the key-substring matcher in redact.go
// cannot see, since that matcher only applies to structured object keys.
// Both mechanisms are kept: one for shaped data, one for opaque text.
var builtinSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[\w-]{20,}['"]?`),
	regexp.MustCompile(`(?i)bearer\s+[\w-\.]+`),
	regexp.MustCompile(`(?i)(aws|amazon).*?(key|secret|token)\s*[:=]\s*['"]?[\w/+=]{20,}['"]?`),
	regexp.MustCompile(`(?i)(password|passwd|secret|token)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
}

// ToolResultGuard controls how tool outcomes are redacted before they reach
// the transcript or telemetry.
type ToolResultGuard struct {
	Enabled         bool
	MaxChars        int
	Denylist        []string
	RedactPatterns  []string
	RedactionText   string
	TruncateSuffix  string
	SanitizeSecrets bool
}

// Active reports whether the guard has any redaction or truncation rule
// configured, i.e. whether Apply would do anything beyond the always-on
// Details redaction.
func (g ToolResultGuard) Active() bool {
	return g.Enabled || g.MaxChars > 0 || len(g.Denylist) > 0 || len(g.RedactPatterns) > 0 || g.RedactionText != "" || g.TruncateSuffix != "" || g.SanitizeSecrets
}

// Apply redacts outcome's text content for toolName. The fixed key-substring
// rule (spec §4.4) is always applied to outcome.Details, since Details
// carries structured data; the regex-based SanitizeSecrets/RedactPatterns
// and MaxChars truncation apply to the free-text Content parts.
func (g ToolResultGuard) Apply(toolName string, outcome models.ToolOutcome) models.ToolOutcome {
	if outcome.Details != nil {
		outcome.Details = redactDeep(outcome.Details)
	}
	if !g.Active() {
		return outcome
	}

	redaction := strings.TrimSpace(g.RedactionText)
	if redaction == "" {
		redaction = redactedValue
	}
	truncateSuffix := strings.TrimSpace(g.TruncateSuffix)
	if truncateSuffix == "" {
		truncateSuffix = truncationMarker
	}

	if len(g.Denylist) > 0 && matchesToolPatterns(g.Denylist, toolName) {
		outcome.Content = []models.TextPart{models.NewTextPart(redaction)}
		return outcome
	}

	for i, part := range outcome.Content {
		text := part.Text
		if g.SanitizeSecrets {
			if matches := DetectSecrets(text); len(matches) > 0 {
				slog.Default().Warn("redacting detected secrets from tool output", "tool", toolName, "patterns", matches)
			}
			for _, re := range builtinSecretPatterns {
				text = re.ReplaceAllString(text, redaction)
			}
		}
		for _, pattern := range g.RedactPatterns {
			pattern = strings.TrimSpace(pattern)
			if pattern == "" {
				continue
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				continue
			}
			text = re.ReplaceAllString(text, redaction)
		}
		if g.MaxChars > 0 && len(text) > g.MaxChars {
			text = text[:g.MaxChars] + truncateSuffix
		}
		outcome.Content[i].Text = text
	}

	return outcome
}

// DetectSecrets scans content for potential secrets and returns the names of
// matched patterns, logged by Apply before a SanitizeSecrets redaction.
func DetectSecrets(content string) []string {
	if content == "" {
		return nil
	}
	names := []string{"api_key", "bearer_token", "aws_key", "generic_secret", "private_key"}
	var matches []string
	for i, re := range builtinSecretPatterns {
		if re.MatchString(content) {
			matches = append(matches, names[i])
		}
	}
	return matches
}
