package deployer

import (
	"os"
	"os/user"
)

// detectOperator identifies who runs the deployment as user@hostname.
// Unknown parts are reported as "unknown".
func detectOperator() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}

	username := "unknown"
	if current, err := user.Current(); err == nil && current.Username != "" {
		username = current.Username
	}

	return username + "@" + hostname
}
