package instance

import (
	"os"
	"strings"
)

const workerIDEnv = "CLASSBRIDGE_WORKER_ID"

// GetID identifies this worker in logs and lock ownership. It prefers
// CLASSBRIDGE_WORKER_ID, then the hostname.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(workerIDEnv)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
