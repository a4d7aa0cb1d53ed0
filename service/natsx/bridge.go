package natsx

import (
	"encoding/json"
	"strings"
	"time"

	"CorpChat/logger"
	errs "CorpChat/tools/errs"

	"github.com/nats-io/nats.go"
)

// Config 客户端配置
type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
	SubjectPrefix string // 默认 "corpchat"
}

func (c *Config) norm() {
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 500 * time.Millisecond
	}
	if c.Timeout == 0 {
		c.Timeout = 3 * time.Second
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "corpchat"
	}
}

// Bridge 事件桥：把 presence 变更 / 已落库消息发布到 NATS，
// 供通知服务、审计等旁路消费。发布失败只记日志，不影响主链路。
type Bridge struct {
	cfg Config
	nc  *nats.Conn
}

// NewBridge 连接 NATS；servers 为空返回错误（调用方可选择不挂桥）
func NewBridge(cfg Config) (*Bridge, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.New("nats servers missing")
	}
	cfg.norm()

	nc, err := nats.Connect(
		strings.Join(cfg.Servers, ","),
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect")
	}
	return &Bridge{cfg: cfg, nc: nc}, nil
}

type presenceEvent struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
	TS     int64  `json:"ts"`
}

// PublishPresence 广播状态迁移；nil 桥安全空操作
func (b *Bridge) PublishPresence(userID, status string) {
	if b == nil || b.nc == nil {
		return
	}
	b.publish(b.cfg.SubjectPrefix+".presence.changed", presenceEvent{
		UserID: userID,
		Status: status,
		TS:     time.Now().UnixMilli(),
	})
}

// PublishMessage 广播已落库消息；nil 桥安全空操作
func (b *Bridge) PublishMessage(msg any) {
	if b == nil || b.nc == nil {
		return
	}
	b.publish(b.cfg.SubjectPrefix+".message.persisted", msg)
}

func (b *Bridge) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("[natsx] marshal subject=%s err=%v", subject, err)
		return
	}
	if err := b.nc.Publish(subject, data); err != nil {
		logger.Warnf("[natsx] publish subject=%s err=%v", subject, err)
	}
}

// Close 排空后断开
func (b *Bridge) Close() {
	if b == nil || b.nc == nil {
		return
	}
	_ = b.nc.Drain()
	b.nc.Close()
}
