package deployer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oshokin/ac-deploy/internal/config"
)

// NoRecognizedCause is the diagnosis when no signature matches.
const NoRecognizedCause = "no recognized cause"

// Signature is a compiled failure pattern.
type Signature struct {
	Name    string
	Pattern *regexp.Regexp
	Cause   string
}

// Diagnosis explains a failed run from the service log.
type Diagnosis struct {
	// Signature is empty when nothing matched.
	Signature string
	Cause     string
	// Line is the log line that matched.
	Line string
}

func (d Diagnosis) String() string {
	if d.Line == "" {
		return d.Cause
	}

	return fmt.Sprintf("%s (%s)", d.Cause, strings.TrimSpace(d.Line))
}

// DefaultSignatures returns the built-in patterns, most specific first.
func DefaultSignatures() []Signature {
	return []Signature{
		{
			Name:    "missing_configuration",
			Pattern: regexp.MustCompile(`(?i)missing required config|ConfigurationException|(extra_cfg|server_cfg|entry_list)\.(yml|ini).*(not found|missing)`),
			Cause:   "missing required configuration",
		},
		{
			Name:    "background_failure",
			Pattern: regexp.MustCompile(`(?i)critical background|BackgroundService failed|hosted service .*(failed|faulted)`),
			Cause:   "critical background failure",
		},
		{
			Name:    "address_in_use",
			Pattern: regexp.MustCompile(`(?i)address already in use|failed to bind`),
			Cause:   "server port is already in use",
		},
		{
			Name:    "missing_content",
			Pattern: regexp.MustCompile(`(?i)(car|track|layout) .*(not found|does not exist)|DirectoryNotFoundException|FileNotFoundException`),
			Cause:   "content referenced by the configuration is missing",
		},
		{
			Name:    "permission_denied",
			Pattern: regexp.MustCompile(`(?i)permission denied|UnauthorizedAccessException`),
			Cause:   "server cannot access its files",
		},
		{
			Name:    "unhandled_exception",
			Pattern: regexp.MustCompile(`(?i)unhandled exception`),
			Cause:   "server crashed with an unhandled exception",
		},
	}
}

// CompileSignatures compiles configured patterns and appends the defaults,
// so configured entries take precedence.
func CompileSignatures(configured []config.Signature) ([]Signature, error) {
	sigs := make([]Signature, 0, len(configured))

	for _, c := range configured {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile failure signature %q: %w", c.Name, err)
		}

		cause := c.Cause
		if cause == "" {
			cause = c.Name
		}

		sigs = append(sigs, Signature{Name: c.Name, Pattern: re, Cause: cause})
	}

	return append(sigs, DefaultSignatures()...), nil
}

// Diagnose returns the cause of the first signature that matches any line of
// logs. Later lines win within a signature.
func Diagnose(logs string, signatures []Signature) Diagnosis {
	lines := strings.Split(logs, "\n")

	for _, sig := range signatures {
		for i := len(lines) - 1; i >= 0; i-- {
			if sig.Pattern.MatchString(lines[i]) {
				return Diagnosis{Signature: sig.Name, Cause: sig.Cause, Line: lines[i]}
			}
		}
	}

	return Diagnosis{Cause: NoRecognizedCause}
}
