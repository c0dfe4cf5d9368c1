// Package guard switches binaries into test mode when imported from tests so
// main packages can be exercised without dialing Redis or binding ports.
package guard

import (
	"os"
	"sync"

	"github.com/odyssey-erp/traffic-dashboard/internal/app"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(app.TestModeEnv) == "" {
			_ = os.Setenv(app.TestModeEnv, "1")
		}
		app.RefreshTestMode()
	})
}
