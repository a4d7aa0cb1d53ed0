package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"CorpChat/service/realtime"
)

func TestNextDelayProgression(t *testing.T) {
	base := time.Second
	limit := 10 * time.Second

	d := NextDelay(0, base, limit)
	require.Equal(t, time.Second, d)

	want := []time.Duration{
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		3375 * time.Millisecond,
	}
	for _, w := range want {
		d = NextDelay(d, base, limit)
		require.Equal(t, w, d)
	}

	// 封顶后不再增长
	for i := 0; i < 10; i++ {
		d = NextDelay(d, base, limit)
	}
	require.Equal(t, limit, d)
}

// ===== httptest WS 对端 =====

type echoServer struct {
	srv *httptest.Server

	mu     sync.Mutex
	conns  []*websocket.Conn
	frames [][]byte
	reject bool // 升级前直接 500，模拟拨号失败
}

func newEchoServer(t *testing.T) *echoServer {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s := &echoServer{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		reject := s.reject
		s.mu.Unlock()
		if reject {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.frames = append(s.frames, data)
			// 业务层 ping 要回 pong，不然客户端的流量死线会误判掉线
			var m map[string]any
			if json.Unmarshal(data, &m) == nil && m["type"] == string(realtime.FramePing) {
				_ = conn.WriteMessage(websocket.TextMessage,
					realtime.MustMarshal(realtime.FramePong, nil))
			}
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *echoServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *echoServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *echoServer) typed(t *testing.T, frameType realtime.FrameType) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	for _, raw := range s.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		if m["type"] == string(frameType) {
			out = append(out, m)
		}
	}
	return out
}

// dropAll 掐断底层 TCP，不发规范关闭帧：客户端应视为异常断开
func (s *echoServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.UnderlyingConn().Close()
	}
}

func (s *echoServer) send(t *testing.T, data []byte) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.conns)
	conn := s.conns[len(s.conns)-1]
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func fastConfig(url string) Config {
	return Config{
		URL:          url,
		UserID:       "alice",
		BackoffBase:  10 * time.Millisecond,
		BackoffCap:   50 * time.Millisecond,
		MaxRetries:   5,
		PingInterval: 20 * time.Millisecond,
	}
}

func waitState(t *testing.T, m *Manager, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.State() == want
	}, 2*time.Second, 2*time.Millisecond, "want state %s, got %s", want, m.State())
}

func TestManagerConnectAuthenticates(t *testing.T) {
	srv := newEchoServer(t)
	m := NewManager(fastConfig(srv.url()))
	defer m.Close()

	require.NoError(t, m.Connect())
	waitState(t, m, StateConnected)

	// 建链后第一帧是 authenticate
	require.Eventually(t, func() bool {
		return len(srv.typed(t, realtime.FrameAuthenticate)) >= 1
	}, time.Second, 2*time.Millisecond)
	auth := srv.typed(t, realtime.FrameAuthenticate)[0]
	require.Equal(t, "alice", auth["userId"])
	require.Equal(t, 0, m.RetryCount())
}

func TestManagerHeartbeatPings(t *testing.T) {
	srv := newEchoServer(t)
	m := NewManager(fastConfig(srv.url()))
	defer m.Close()

	require.NoError(t, m.Connect())
	require.Eventually(t, func() bool {
		return len(srv.typed(t, realtime.FramePing)) >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManagerDeliversFrames(t *testing.T) {
	srv := newEchoServer(t)
	m := NewManager(fastConfig(srv.url()))
	defer m.Close()

	var mu sync.Mutex
	var got []*realtime.Frame
	m.OnFrame(func(f *realtime.Frame) {
		mu.Lock()
		got = append(got, f)
		mu.Unlock()
	})

	require.NoError(t, m.Connect())
	waitState(t, m, StateConnected)

	srv.send(t, realtime.MustMarshal(realtime.FrameNewMessage,
		map[string]any{"content": "hi", "senderId": "bob"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 2*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, realtime.FrameNewMessage, got[0].Type)
	require.Equal(t, "hi", got[0].Fields["content"])
}

func TestManagerQueuesWhileDisconnectedThenDrains(t *testing.T) {
	srv := newEchoServer(t)
	m := NewManager(fastConfig(srv.url()))
	defer m.Close()

	// 未连接：入队，不丢
	err := m.Send(realtime.FrameTyping, map[string]any{"targetUserId": "bob", "isTyping": true})
	require.ErrorIs(t, err, ErrQueued)
	err = m.Send(realtime.FrameTyping, map[string]any{"targetUserId": "bob", "isTyping": false})
	require.ErrorIs(t, err, ErrQueued)
	require.Equal(t, 2, m.QueueLen())

	require.NoError(t, m.Connect())
	waitState(t, m, StateConnected)

	// 排空保序：authenticate 先行，随后按入队顺序
	require.Eventually(t, func() bool {
		return len(srv.typed(t, realtime.FrameTyping)) == 2
	}, time.Second, 2*time.Millisecond)
	typing := srv.typed(t, realtime.FrameTyping)
	require.Equal(t, true, typing[0]["isTyping"])
	require.Equal(t, false, typing[1]["isTyping"])
	require.Equal(t, 0, m.QueueLen())
}

func TestManagerReconnectsAfterDrop(t *testing.T) {
	srv := newEchoServer(t)
	m := NewManager(fastConfig(srv.url()))
	defer m.Close()

	require.NoError(t, m.Connect())
	waitState(t, m, StateConnected)
	require.Equal(t, 1, srv.connCount())

	srv.dropAll()

	// 自动重连，重新 authenticate，计数清零
	require.Eventually(t, func() bool {
		return srv.connCount() >= 2 && m.State() == StateConnected
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(srv.typed(t, realtime.FrameAuthenticate)) >= 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, m.RetryCount())
}

func TestManagerRetriesExhausted(t *testing.T) {
	srv := newEchoServer(t)
	srv.mu.Lock()
	srv.reject = true
	srv.mu.Unlock()

	cfg := fastConfig(srv.url())
	cfg.MaxRetries = 2
	m := NewManager(cfg)
	defer m.Close()

	require.NoError(t, m.Connect())
	waitState(t, m, StateDisconnected)
	require.Equal(t, 2, m.RetryCount())
	require.NotEmpty(t, m.LastError())
}

func TestManagerDisconnectStaysDown(t *testing.T) {
	srv := newEchoServer(t)
	m := NewManager(fastConfig(srv.url()))
	defer m.Close()

	require.NoError(t, m.Connect())
	waitState(t, m, StateConnected)

	m.Disconnect()
	require.Equal(t, StateDisconnected, m.State())

	// 主动断开不触发重连
	require.Never(t, func() bool {
		return srv.connCount() > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestManagerForceReconnect(t *testing.T) {
	srv := newEchoServer(t)
	m := NewManager(fastConfig(srv.url()))
	defer m.Close()

	require.NoError(t, m.Connect())
	waitState(t, m, StateConnected)

	require.NoError(t, m.ForceReconnect())
	require.Eventually(t, func() bool {
		return srv.connCount() >= 2 && m.State() == StateConnected
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 0, m.RetryCount())
}

func TestManagerSendAfterClose(t *testing.T) {
	srv := newEchoServer(t)
	m := NewManager(fastConfig(srv.url()))
	m.Close()

	require.ErrorIs(t, m.Send(realtime.FramePing, nil), ErrClosed)
	require.ErrorIs(t, m.Connect(), ErrClosed)
}

func TestManagerStateCallback(t *testing.T) {
	srv := newEchoServer(t)
	m := NewManager(fastConfig(srv.url()))
	defer m.Close()

	var mu sync.Mutex
	seen := map[State]bool{}
	m.OnStateChange(func(s State) {
		mu.Lock()
		seen[s] = true
		mu.Unlock()
	})

	require.NoError(t, m.Connect())
	waitState(t, m, StateConnected)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[StateConnecting] && seen[StateConnected]
	}, time.Second, 5*time.Millisecond)
}
