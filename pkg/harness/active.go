package harness

import (
	"sync"

	"github.com/xkilldash9x/expectkit/internal/config"
)

var (
	activeMu sync.RWMutex
	active   = config.NewDefaultConfig().Harness
)

// Active returns the harness settings suites use when not told otherwise.
func Active() config.HarnessConfig {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return active
}

func setActive(cfg config.HarnessConfig) {
	activeMu.Lock()
	active = cfg
	activeMu.Unlock()
}
