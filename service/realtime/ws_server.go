package realtime

import (
	"context"
	"net"
	"net/http"
	"time"

	"CorpChat/logger"
	midsec "CorpChat/middleware/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSConfig ===== 配置 =====
type WSConfig struct {
	HeartbeatInterval time.Duration // 客户端 ping 周期约定（默认 30s）
	ReadLimit         int64         // 单帧上限（默认 1MB）
	SendBuffer        int           // 每连接出站队列长度
	WriteTimeout      time.Duration
}

func (c *WSConfig) norm() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSServer /ws 端点：升级、读循环、收尾下线
type WSServer struct {
	cfg    WSConfig
	reg    *Registry
	router *Router
}

func NewWSServer(cfg WSConfig, reg *Registry, router *Router) *WSServer {
	cfg.norm()
	return &WSServer{cfg: cfg, reg: reg, router: router}
}

// HandleWS gin 入口。身份在升级前由 auth 中间件从 JWT 解出，
// 连接本身再等 authenticate 帧完成注册。
func (s *WSServer) HandleWS(c *gin.Context) {
	uid := c.GetString(midsec.CtxUserIDKey)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	sess := NewSessionBuffered(ws, s.cfg.SendBuffer, s.cfg.WriteTimeout)
	sess.ExpectedUserID = uid

	// 服务端活性检查：3×心跳周期内没有任何入站帧（含 ping）就判死，
	// 避免半开连接让注册表里挂着僵尸会话
	readDeadline := 3 * s.cfg.HeartbeatInterval
	ws.SetReadLimit(s.cfg.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(readDeadline))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed user=%s err=%v", sess.UserID(), rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout user=%s err=%v", sess.UserID(), rerr)
			} else {
				logger.Infof("[ws] read err user=%s err=%v", sess.UserID(), rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		// 任何业务帧都算心跳
		_ = ws.SetReadDeadline(time.Now().Add(readDeadline))

		s.router.HandleFrame(c.Request.Context(), sess, data)
	}

	// ---- 退出阶段：下线、广播 offline、关写泵 ----
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.reg.Unregister(ctx, sess.UserID(), sess)
	sess.Close()
}
