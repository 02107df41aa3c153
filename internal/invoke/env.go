package invoke

import (
	"os"
	"strings"
)

// buildEnv returns the child process environment: the current environment
// with CLAUDECODE* stripped so the child never believes it is nested inside
// an interactive agent session, plus any extra entries.
func buildEnv(extra []string) []string {
	var env []string
	for _, e := range os.Environ() {
		key := strings.SplitN(e, "=", 2)[0]
		if strings.HasPrefix(key, "CLAUDECODE") {
			continue
		}
		env = append(env, e)
	}
	return append(env, extra...)
}
