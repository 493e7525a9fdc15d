package zookeeper

import (
	"sort"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
)

func TestSequenceOrderingIgnoresProtectedPrefix(t *testing.T) {
	children := []string{
		"_c_ffff-lock-0000000003",
		"_c_0000-lock-0000000002",
		"_c_aaaa-lock-0000000001",
	}
	sort.Slice(children, func(i, j int) bool { return sequenceOf(children[i]) < sequenceOf(children[j]) })

	assert.Equal(t, []string{
		"_c_aaaa-lock-0000000001",
		"_c_0000-lock-0000000002",
		"_c_ffff-lock-0000000003",
	}, children)
	assert.Equal(t, "plain", sequenceOf("plain"))
}

func TestWatchSessionClosesOnExpiry(t *testing.T) {
	events := make(chan zk.Event, 4)
	expired := make(chan struct{})
	done := make(chan struct{})
	go func() {
		watchSession(events, expired)
		close(done)
	}()

	events <- zk.Event{Type: zk.EventSession, State: zk.StateConnected}
	events <- zk.Event{Type: zk.EventSession, State: zk.StateDisconnected}
	events <- zk.Event{Type: zk.EventNodeDeleted, State: zk.StateExpired}
	select {
	case <-expired:
		t.Fatal("expired closed before the session expired")
	case <-time.After(50 * time.Millisecond):
	}

	events <- zk.Event{Type: zk.EventSession, State: zk.StateExpired}
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("expired not closed after session expiry")
	}

	// 重复的过期事件不会再次关闭 channel
	events <- zk.Event{Type: zk.EventSession, State: zk.StateExpired}
	close(events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after events closed")
	}
}
