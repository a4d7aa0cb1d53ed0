package realtime

import (
	"context"

	"CorpChat/logger"
)

// Router 按帧类型分发。闭集 switch：内部生成的帧不可能走到 default，
// 外部来源的未知类型在 ParseFrame 就被拦下（记日志，不回错误帧）。
type Router struct {
	reg   *Registry
	store Store
}

func NewRouter(reg *Registry, store Store) *Router {
	return &Router{reg: reg, store: store}
}

// HandleFrame 处理一条入站帧。任何解析/分发失败都不关连接：
// 坏帧记日志丢弃，发送方不收确认（fire-and-forget）。
func (rt *Router) HandleFrame(ctx context.Context, sess *Session, raw []byte) {
	f, err := ParseFrame(raw)
	if err != nil {
		sample := raw
		if len(sample) > 256 {
			sample = sample[:256]
		}
		logger.Warnf("[router] drop bad frame user=%s err=%v sample=%q", sess.UserID(), err, sample)
		return
	}

	// 认证前只放行 authenticate/ping，其余一律丢弃：
	// 没有身份的 relay 会泄露无来源帧给对端
	if sess.UserID() == "" && f.Type != FrameAuthenticate && f.Type != FramePing {
		logger.Warnf("[router] drop pre-auth frame type=%s", f.Type)
		return
	}

	switch f.Type {
	case FrameAuthenticate:
		rt.handleAuthenticate(ctx, sess, f)
	case FramePing:
		sess.Send(MustMarshal(FramePong, nil))
	case FrameTyping:
		rt.handleTyping(ctx, sess, f)
	case FrameStatusUpdate:
		rt.handleStatus(ctx, sess, f)
	case FrameOffer, FrameAnswer, FrameICECandidate, FrameEndCall:
		rt.handleRelay(sess, f)
	case FramePong, FrameNewMessage, FrameMessageSent, FrameGroupMessage,
		FrameIncomingCall, FrameUserTyping, FrameError:
		// 出站专用类型不接受入站
		logger.Warnf("[router] drop outbound-only frame type=%s user=%s", f.Type, sess.UserID())
	}
}

// handleAuthenticate 绑定身份并注册。帧里的 userId 必须与升级握手时
// JWT 绑定的身份一致，防止冒充（不再信任客户端自报身份）。
func (rt *Router) handleAuthenticate(ctx context.Context, sess *Session, f *Frame) {
	p, err := Payload[AuthenticatePayload](f)
	if err != nil || p.UserID == "" {
		sess.Send(ErrorFrame("authenticate: missing userId"))
		return
	}
	if sess.ExpectedUserID != "" && p.UserID != sess.ExpectedUserID {
		logger.Warnf("[router] identity mismatch claim=%s token=%s", p.UserID, sess.ExpectedUserID)
		sess.Send(ErrorFrame("authenticate: identity mismatch"))
		return
	}
	rt.reg.Register(ctx, p.UserID, sess)
}

// handleTyping 直聊转给 targetUserId，群聊转给除发送者外的全部群成员。
// 服务端不做防抖，那是客户端的事。
func (rt *Router) handleTyping(ctx context.Context, sess *Session, f *Frame) {
	p, err := Payload[TypingPayload](f)
	if err != nil {
		logger.Warnf("[router] bad typing payload user=%s err=%v", sess.UserID(), err)
		return
	}
	sender := sess.UserID()
	data := MustMarshal(FrameUserTyping, map[string]any{
		"userId":   sender,
		"chatId":   p.ChatID,
		"isTyping": p.IsTyping,
	})

	switch {
	case p.TargetUserID != "":
		rt.reg.Deliver(p.TargetUserID, data)
	case p.ChatID != "":
		members, err := rt.store.GetGroupMembers(ctx, p.ChatID)
		if err != nil {
			logger.Errorf("[router] group members chat=%s err=%v", p.ChatID, err)
			return
		}
		rt.reg.DeliverMany(members, sender, data)
	default:
		logger.Warnf("[router] typing without target user=%s", sender)
	}
}

func (rt *Router) handleStatus(ctx context.Context, sess *Session, f *Frame) {
	p, err := Payload[StatusPayload](f)
	if err != nil {
		sess.Send(ErrorFrame("statusUpdate: bad payload"))
		return
	}
	if err := rt.reg.SetStatus(ctx, sess.UserID(), p.Status); err != nil {
		sess.Send(ErrorFrame(err.Error()))
	}
}

// handleRelay webrtc 信令纯转发：查目标、注入 fromUserId、原样发出。
// 目标不在线静默丢弃，不给发送方报错（呼叫方靠超时感知）。
func (rt *Router) handleRelay(sess *Session, f *Frame) {
	p, err := Payload[RelayPayload](f)
	if err != nil || p.TargetUserID == "" {
		logger.Warnf("[router] relay without target type=%s user=%s", f.Type, sess.UserID())
		return
	}
	target, ok := rt.reg.Lookup(p.TargetUserID)
	if !ok {
		return
	}

	fields := make(map[string]any, len(f.Fields)+1)
	for k, v := range f.Fields {
		fields[k] = v
	}
	fields["fromUserId"] = sess.UserID()
	out := &Frame{Type: f.Type, Timestamp: f.Timestamp, Fields: fields}
	data, err := out.Marshal()
	if err != nil {
		logger.Errorf("[router] marshal relay type=%s err=%v", f.Type, err)
		return
	}
	target.Send(data)
}
