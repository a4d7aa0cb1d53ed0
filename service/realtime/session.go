package realtime

import (
	"sync"
	"time"

	"CorpChat/logger"
	"github.com/gorilla/websocket"
)

const (
	defaultSendBuffer   = 256
	defaultWriteTimeout = 5 * time.Second
)

// Conn 会话底层连接需要的最小写接口；*websocket.Conn 天然满足，单测注入 fake
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session 一个已连接 socket 的服务端绑定。
// UserID 在 authenticate 成功前为空；写操作全部走 sendCh 单写协程
// （gorilla 连接不允许并发写，见写泵注释）。
type Session struct {
	conn        Conn
	ConnectedAt time.Time

	// ExpectedUserID 升级握手时由 JWT 绑定的身份；authenticate 帧必须与之一致。
	// 读循环开始前写入，之后只读。
	ExpectedUserID string

	mu     sync.RWMutex
	userID string

	sendCh    chan []byte
	closeOnce sync.Once
	done      chan struct{}

	writeTimeout time.Duration
}

func NewSession(conn Conn) *Session {
	return NewSessionBuffered(conn, defaultSendBuffer, defaultWriteTimeout)
}

func NewSessionBuffered(conn Conn, buffer int, writeTimeout time.Duration) *Session {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	s := &Session{
		conn:         conn,
		ConnectedAt:  time.Now(),
		sendCh:       make(chan []byte, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
	go s.writePump()
	return s
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) bindUser(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

// Send 非阻塞入队。队列满说明消费端慢/卡死：丢这一帧，
// 绝不让单个慢消费者拖住别人的投递。
func (s *Session) Send(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.sendCh <- data:
		return true
	default:
		logger.Warnf("[session] send buffer full, drop frame user=%s", s.UserID())
		return false
	}
}

// Close 关闭连接并停掉写泵；幂等
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// writePump 单写协程：串行化全部 socket 写，带写超时。
// 写失败即认为连接死亡，关闭交给读循环统一收尾。
func (s *Session) writePump() {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.sendCh:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debugf("[session] write failed user=%s err=%v", s.UserID(), err)
				s.Close()
				return
			}
		}
	}
}
