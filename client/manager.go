package client

import (
	"net/http"
	"sync"
	"time"

	"CorpChat/logger"
	"CorpChat/service/realtime"
	errs "CorpChat/tools/errs"
	"CorpChat/tools/safe"

	"github.com/gorilla/websocket"
)

// ===== 状态机 =====

// State 连接状态。迁移只在四条边上发生：
// disconnected→connecting（显式 Connect）、connecting→connected（握手+认证成功）、
// connected→reconnecting（异常断开）、reconnecting→connecting（退避计时器到点）。
// 重试次数耗尽回到 disconnected。
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// ===== 配置 =====

type Config struct {
	URL    string // ws://host:port/ws
	Token  string // JWT，升级握手经 query 带上
	UserID string

	BackoffBase  time.Duration // 首次重连延迟，默认 1s
	BackoffCap   time.Duration // 延迟上限，默认 10s
	MaxRetries   int           // 默认 5
	PingInterval time.Duration // 默认 30s
	PongTimeout  time.Duration // 默认 2×PingInterval，超时判连接死亡
	QueueSize    int           // 离线队列容量，默认 100
	WriteTimeout time.Duration // 单次写超时，默认 5s

	Dialer *websocket.Dialer
}

func (c *Config) norm() {
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 2 * c.PingInterval
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.Dialer == nil {
		c.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
}

// ErrQueued Send 在未连接时入队后返回，调用方可据此区分"已发出"和"等重连"
var ErrQueued = errs.New("client: not connected, frame queued")

// ErrClosed Manager 已 Close，不再接受任何操作
var ErrClosed = errs.New("client: manager closed")

// ===== Manager =====

// Manager 客户端会话管理器：拨号、认证、心跳、断线退避重连、离线队列。
// 所有字段由 mu 保护；generation 每次显式断开/强制重连自增，
// 旧连接残留的读协程/计时器靠代次比对自行退场。
type Manager struct {
	cfg Config

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	generation int
	retryCount int
	curDelay   time.Duration
	lastErr    string
	closed     bool

	queue          *Queue
	reconnectTimer *time.Timer
	stopHeartbeat  chan struct{}

	onFrame func(*realtime.Frame)
	onState func(State)

	lastTrafficMu sync.Mutex
	lastTraffic   time.Time
}

func NewManager(cfg Config) *Manager {
	cfg.norm()
	return &Manager{
		cfg:   cfg,
		state: StateDisconnected,
		queue: NewQueue(cfg.QueueSize),
	}
}

// OnFrame 注册入站帧回调（pong 除外）。Connect 之前设置。
func (m *Manager) OnFrame(cb func(*realtime.Frame)) {
	m.mu.Lock()
	m.onFrame = cb
	m.mu.Unlock()
}

// OnStateChange 注册状态迁移回调；异步触发，回调内可安全调 Manager 方法
func (m *Manager) OnStateChange(cb func(State)) {
	m.mu.Lock()
	m.onState = cb
	m.mu.Unlock()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) RetryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryCount
}

func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) QueueLen() int {
	return m.queue.Len()
}

// Connect 从 disconnected 发起连接；其他状态下为空操作
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.lastErr = ""
	m.setStateLocked(StateConnecting)
	gen := m.generation
	m.mu.Unlock()

	safe.Go(func() { m.dial(gen) })
	return nil
}

// Disconnect 主动断开：发规范关闭帧、停计时器、清空重试计数。
// 不触发重连，队列保留。
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.generation++
	m.stopTimersLocked()
	conn := m.conn
	m.conn = nil
	m.retryCount = 0
	m.curDelay = 0
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

// ForceReconnect 立刻放弃当前连接重新拨号；重试计数清零
func (m *Manager) ForceReconnect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.generation++
	m.stopTimersLocked()
	conn := m.conn
	m.conn = nil
	m.retryCount = 0
	m.curDelay = 0
	m.lastErr = ""
	m.setStateLocked(StateConnecting)
	gen := m.generation
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	safe.Go(func() { m.dial(gen) })
	return nil
}

// Close 终止 Manager：断开并丢弃队列，之后所有操作返回 ErrClosed
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.Disconnect()
	m.queue.Clear()
}

// Send 连接可用直接写；否则入队等重连后排空，返回 ErrQueued
func (m *Manager) Send(t realtime.FrameType, fields map[string]any) error {
	return m.SendRaw(realtime.MustMarshal(t, fields))
}

func (m *Manager) SendRaw(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.state == StateConnected && m.conn != nil {
		if err := m.writeLocked(data); err == nil {
			return nil
		}
		// 写失败交给读循环触发重连，本帧入队不丢
	}
	if evicted := m.queue.Push(data); evicted {
		logger.Warnf("[client] offline queue full, oldest frame dropped user=%s", m.cfg.UserID)
	}
	return ErrQueued
}

// ===== 拨号 / 连接生命周期 =====

func (m *Manager) dial(gen int) {
	url := m.cfg.URL
	if m.cfg.Token != "" {
		sep := "?"
		for i := 0; i < len(url); i++ {
			if url[i] == '?' {
				sep = "&"
				break
			}
		}
		url += sep + "token=" + m.cfg.Token
	}

	conn, resp, err := m.cfg.Dialer.Dial(url, http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		logger.Warnf("[client] dial failed user=%s err=%v", m.cfg.UserID, err)
		m.connectionLost(gen, err.Error())
		return
	}

	m.mu.Lock()
	if m.closed || gen != m.generation {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.retryCount = 0
	m.curDelay = 0
	m.lastErr = ""
	m.stopHeartbeat = make(chan struct{})
	stop := m.stopHeartbeat
	m.setStateLocked(StateConnected)

	// 每次建链都重新走 authenticate：服务端注册表以最后一次认证为准
	auth := realtime.MustMarshal(realtime.FrameAuthenticate,
		map[string]any{"userId": m.cfg.UserID})
	if err := m.writeLocked(auth); err != nil {
		m.mu.Unlock()
		_ = conn.Close()
		m.connectionLost(gen, "authenticate write: "+err.Error())
		return
	}
	m.drainLocked()
	m.mu.Unlock()

	m.touchTraffic()
	safe.Go(func() { m.readLoop(conn, gen) })
	safe.Go(func() { m.heartbeat(conn, gen, stop) })
}

func (m *Manager) drainLocked() {
	if err := drainQueue(m.queue, m.writeLocked); err != nil {
		logger.Warnf("[client] queue drain interrupted user=%s err=%v", m.cfg.UserID, err)
	}
}

// drainQueue 排空离线队列，保序；中途写失败把该帧放回队头停排，
// 剩余帧等下一次建链
func drainQueue(q *Queue, write func([]byte) error) error {
	for {
		data, ok := q.PopFront()
		if !ok {
			return nil
		}
		if err := write(data); err != nil {
			q.PushFront(data)
			return err
		}
	}
}

func (m *Manager) writeLocked(data []byte) error {
	_ = m.conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	return m.conn.WriteMessage(websocket.TextMessage, data)
}

func (m *Manager) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.cleanClose(gen)
				return
			}
			m.connectionLost(gen, err.Error())
			return
		}
		m.touchTraffic()

		f, perr := realtime.ParseFrame(data)
		if perr != nil {
			logger.Warnf("[client] drop bad frame user=%s err=%v", m.cfg.UserID, perr)
			continue
		}
		if f.Type == realtime.FramePong {
			continue
		}

		m.mu.Lock()
		cb := m.onFrame
		m.mu.Unlock()
		if cb != nil {
			cb(f)
		}
	}
}

// cleanClose 对端规范关闭：回 disconnected，不重连
func (m *Manager) cleanClose(gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.generation {
		return
	}
	m.stopTimersLocked()
	m.conn = nil
	m.setStateLocked(StateDisconnected)
}

// connectionLost 异常断开或拨号失败：进入退避重连
func (m *Manager) connectionLost(gen int, cause string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.generation {
		return
	}
	m.stopTimersLocked()
	m.conn = nil
	m.lastErr = cause
	m.scheduleReconnectLocked()
}

// ===== 重连退避 =====

// NextDelay 给定上一次延迟返回下一次：delay₁=base，之后 ×1.5 封顶 limit
func NextDelay(prev, base, limit time.Duration) time.Duration {
	if prev <= 0 {
		return base
	}
	next := prev + prev/2
	if next > limit {
		return limit
	}
	return next
}

func (m *Manager) scheduleReconnectLocked() {
	if m.retryCount >= m.cfg.MaxRetries {
		logger.Warnf("[client] retries exhausted (%d) user=%s lastErr=%s",
			m.retryCount, m.cfg.UserID, m.lastErr)
		m.setStateLocked(StateDisconnected)
		return
	}
	m.curDelay = NextDelay(m.curDelay, m.cfg.BackoffBase, m.cfg.BackoffCap)
	m.retryCount++
	m.setStateLocked(StateReconnecting)

	gen := m.generation
	delay := m.curDelay
	logger.Infof("[client] reconnect #%d in %s user=%s", m.retryCount, delay, m.cfg.UserID)
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.closed || gen != m.generation || m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		m.setStateLocked(StateConnecting)
		m.mu.Unlock()
		m.dial(gen)
	})
}

// ===== 心跳 =====

// heartbeat 周期发业务层 ping；一段时间收不到任何入站流量就判死，
// 强关连接让读循环统一走重连路径。
func (m *Manager) heartbeat(conn *websocket.Conn, gen int, stop chan struct{}) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		if m.closed || gen != m.generation || m.conn != conn {
			m.mu.Unlock()
			return
		}
		err := m.writeLocked(realtime.MustMarshal(realtime.FramePing, nil))
		m.mu.Unlock()
		if err != nil {
			_ = conn.Close()
			return
		}

		if time.Since(m.trafficAt()) > m.cfg.PongTimeout {
			logger.Warnf("[client] heartbeat timeout user=%s, closing", m.cfg.UserID)
			_ = conn.Close()
			return
		}
	}
}

func (m *Manager) touchTraffic() {
	m.lastTrafficMu.Lock()
	m.lastTraffic = time.Now()
	m.lastTrafficMu.Unlock()
}

func (m *Manager) trafficAt() time.Time {
	m.lastTrafficMu.Lock()
	defer m.lastTrafficMu.Unlock()
	return m.lastTraffic
}

// ===== 内部 =====

func (m *Manager) stopTimersLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	if m.stopHeartbeat != nil {
		close(m.stopHeartbeat)
		m.stopHeartbeat = nil
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	if cb := m.onState; cb != nil {
		safe.Go(func() { cb(s) })
	}
}
