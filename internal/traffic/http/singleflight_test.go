package traffichttp

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/traffic-dashboard/internal/traffic/ui"
)

func TestSharedBuildSurvivesFirstCallerCancel(t *testing.T) {
	key := "sess-cancel?" + t.Name()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	build := func(ctx context.Context) (ui.DashboardViewModel, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return ui.DashboardViewModel{}, err
		}
		return ui.DashboardViewModel{Loaded: true, MaxUploadMB: 7}, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := buildDashboardOnce(firstCtx, key, build)
		firstErr <- err
	}()
	<-started

	type result struct {
		vm  ui.DashboardViewModel
		err error
	}
	second := make(chan result, 1)
	go func() {
		vm, err := buildDashboardOnce(context.Background(), key, build)
		second <- result{vm, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("first caller kept waiting after cancel")
	}

	close(release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.True(t, res.vm.Loaded)
		assert.EqualValues(t, 7, res.vm.MaxUploadMB)
	case <-time.After(time.Second):
		t.Fatal("second caller never received the shared build")
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSharedBuildHasItsOwnDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	_, err := buildDashboardOnce(context.Background(), "sess-deadline?"+t.Name(), func(ctx context.Context) (ui.DashboardViewModel, error) {
		deadline, ok = ctx.Deadline()
		return ui.DashboardViewModel{}, nil
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(requestTimeout), deadline, time.Second)
}
