package policy

import (
	"strings"

	apperr "github.com/mrivas/defi-agent/internal/errors"
)

// CheckCommandAllowed enforces the --enable-commands allowlist. An empty
// allowlist permits everything; agent deployments narrow it to the operations
// the session is supposed to perform.
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	for _, allowed := range allowlist {
		if normalize(allowed) == normPath {
			return nil
		}
	}
	return apperr.New(apperr.StepToolExecution, "command blocked by --enable-commands policy").
		WithDetail("command", commandPath)
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
