package observe

import (
	"os"
	"sync"
)

// EnvEnable is the environment variable that turns observation emission
// on. Emission is off by default; set OBSERVE=1 (or "true") to enable it.
// The value is read once and cached.
const EnvEnable = "OBSERVE"

var (
	envOnce    sync.Once
	envEnabled bool
)

// Enabled reports whether observation emission is enabled for this
// process.
func Enabled() bool {
	envOnce.Do(func() {
		switch os.Getenv(EnvEnable) {
		case "1", "true":
			envEnabled = true
		}
	})
	return envEnabled
}
