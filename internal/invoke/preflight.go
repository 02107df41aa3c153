package invoke

import (
	"fmt"
	"os/exec"
)

// Preflight checks that the capability binary is available on PATH before
// any phase executes.
func Preflight(command string) error {
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("capability command %q not found in PATH", command)
	}
	return nil
}
