package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeConn 记录全部出站帧，供断言；并发安全（写泵在独立协程）
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("write on dead conn")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.frames = append(c.frames, cp)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// typed 解码后按帧类型过滤
func (c *fakeConn) typed(t *testing.T, frameType FrameType) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, raw := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		if m["type"] == string(frameType) {
			out = append(out, m)
		}
	}
	return out
}

func waitTyped(t *testing.T, c *fakeConn, frameType FrameType, n int) []map[string]any {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(c.typed(t, frameType)) >= n
	}, time.Second, 2*time.Millisecond, "want %d %s frames", n, frameType)
	return c.typed(t, frameType)
}

func neverTyped(t *testing.T, c *fakeConn, frameType FrameType) {
	t.Helper()
	require.Never(t, func() bool {
		return len(c.typed(t, frameType)) > 0
	}, 50*time.Millisecond, 5*time.Millisecond, "unexpected %s frame", frameType)
}

// fakeStore 记录状态落库调用；groups 预置群成员
type fakeStore struct {
	mu       sync.Mutex
	statuses map[string]string
	groups   map[string][]string
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		statuses: make(map[string]string),
		groups:   make(map[string][]string),
	}
}

func (s *fakeStore) UpdateUserStatus(_ context.Context, userID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.statuses[userID] = status
	return nil
}

func (s *fakeStore) GetGroupMembers(_ context.Context, groupID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.groups[groupID], nil
}

func (s *fakeStore) statusOf(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[userID]
}

// fakeBridge 记录 presence 事件
type fakeBridge struct {
	mu     sync.Mutex
	events []string
}

func (b *fakeBridge) PublishPresence(userID, status string) {
	b.mu.Lock()
	b.events = append(b.events, userID+":"+status)
	b.mu.Unlock()
}

func (b *fakeBridge) all() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

// newOnline 建一条已注册的会话
func newOnline(t *testing.T, reg *Registry, userID string) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	sess := NewSession(conn)
	t.Cleanup(sess.Close)
	reg.Register(context.Background(), userID, sess)
	return sess, conn
}
