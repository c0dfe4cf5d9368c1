package traffichttp

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/traffic-dashboard/internal/traffic/ui"
)

// dashboardBuilds collapses concurrent rebuilds of one session's dashboard
// under the same filters, e.g. a double-submitted filter form.
var dashboardBuilds singleflight.Group

func buildKey(sessionID string, filters ui.DashboardFilters) string {
	return sessionID + "?" + filters.Encode()
}

// buildDashboardOnce runs fn once per key; callers stop waiting when ctx ends.
// The shared build is detached from the first caller so its cancellation does
// not fail the other waiters.
func buildDashboardOnce(ctx context.Context, key string, fn func(context.Context) (ui.DashboardViewModel, error)) (ui.DashboardViewModel, error) {
	ch := dashboardBuilds.DoChan(key, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requestTimeout)
		defer cancel()
		return fn(buildCtx)
	})
	select {
	case <-ctx.Done():
		return ui.DashboardViewModel{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return ui.DashboardViewModel{}, res.Err
		}
		return res.Val.(ui.DashboardViewModel), nil
	}
}
