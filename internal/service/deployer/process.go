package deployer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/ac-deploy/internal/logger"
)

// warnIfAlreadyRunning logs other processes of this executable. The local
// staging directory is not locked, so two runs would step on each other.
func warnIfAlreadyRunning(ctx context.Context) {
	processes, err := ps.Processes()
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)

		return
	}

	for _, pid := range otherInstances(processes, os.Getpid(), filepath.Base(os.Args[0])) {
		logger.WarnKV(ctx, "Another deployment appears to be running on this machine", "pid", pid)
	}
}

func otherInstances(processes []ps.Process, self int, executable string) []int {
	var pids []int

	for _, p := range processes {
		if p.Pid() == self || p.Executable() != executable {
			continue
		}

		pids = append(pids, p.Pid())
	}

	return pids
}
