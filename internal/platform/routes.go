package platform

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

const routeCommandTimeout = 5 * time.Second

// RouteTable returns the kernel routing table as raw command output. The
// text is opaque to this system; callers display it as-is.
func RouteTable(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, routeCommandTimeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "route", "print")
	} else {
		cmd = exec.CommandContext(ctx, "ip", "route")
	}

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("read route table: %w", err)
	}
	return string(out), nil
}
