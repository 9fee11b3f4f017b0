package cdp

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTrackedSession(t *testing.T) *Session {
	t.Helper()
	s := &Session{
		logger: zaptest.NewLogger(t),
		live:   make(map[string]*target.Info),
		tabs:   make(map[string]*tab),
		first:  "opener",
	}
	s.track(&target.Info{TargetID: "opener", Type: pageTargetType})
	s.tabs["opener"] = &tab{ctx: context.Background(), cancel: func() {}}
	return s
}

func TestOnTargetEvent_TracksPagesInOrder(t *testing.T) {
	s := newTrackedSession(t)

	s.onTargetEvent(&target.EventTargetCreated{TargetInfo: &target.Info{TargetID: "worker", Type: "service_worker"}})
	s.onTargetEvent(&target.EventTargetCreated{TargetInfo: &target.Info{TargetID: "popup", Type: pageTargetType}})
	s.onTargetEvent(&target.EventTargetInfoChanged{TargetInfo: &target.Info{TargetID: "popup", Type: pageTargetType, URL: "http://app.test/report"}})

	assert.Equal(t, []string{"opener", "popup"}, s.order)
	assert.Equal(t, "http://app.test/report", s.live["popup"].URL)
	assert.NotContains(t, s.live, "worker")
}

// Releasing a closed page's context blocks until chromedp can send a
// detach, which it cannot do while the listener is still running.
func TestOnTargetEvent_DestroyedPageReleasedOffTheEventLoop(t *testing.T) {
	s := newTrackedSession(t)
	s.onTargetEvent(&target.EventTargetCreated{TargetInfo: &target.Info{TargetID: "popup", Type: pageTargetType}})

	unblock := make(chan struct{})
	released := make(chan struct{})
	s.tabs["popup"] = &tab{ctx: context.Background(), cancel: func() {
		<-unblock
		close(released)
	}}
	defer close(unblock)

	returned := make(chan struct{})
	go func() {
		s.onTargetEvent(&target.EventTargetDestroyed{TargetID: "popup"})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("listener blocked on releasing the closed page")
	}

	// The session lock is free while the release is still pending.
	locked := make(chan struct{})
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		assert.NotContains(t, s.tabs, "popup")
		assert.NotContains(t, s.live, "popup")
		close(locked)
	}()
	select {
	case <-locked:
	case <-time.After(2 * time.Second):
		t.Fatal("session lock held while releasing the closed page")
	}

	unblock <- struct{}{}
	require.Eventually(t, func() bool {
		select {
		case <-released:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOnTargetEvent_OpenerIsNeverReleased(t *testing.T) {
	s := newTrackedSession(t)
	called := make(chan struct{}, 1)
	s.tabs["opener"].cancel = func() { called <- struct{}{} }

	s.onTargetEvent(&target.EventTargetDestroyed{TargetID: "opener"})

	assert.Contains(t, s.tabs, "opener")
	select {
	case <-called:
		t.Fatal("the browser's first page context was released")
	case <-time.After(100 * time.Millisecond):
	}
}
