package instance

import (
	"os"

	"github.com/angelmondragon/grocery-backend/pkg/env"
)

// EnvWorkerID overrides the identifier a worker replica logs under.
const EnvWorkerID = "GROCERY_WORKER_ID"

// GetID returns the replica identifier: the override, then the hostname,
// then "worker-0".
func GetID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return env.Get(EnvWorkerID, host)
	}
	return env.Get(EnvWorkerID, "worker-0")
}
