package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	decode "CorpChat/tools/decode"
)

// FrameType 闭集：新增帧类型必须同时扩展 Router 的 dispatch
type FrameType string

const (
	// 入站
	FrameAuthenticate FrameType = "authenticate"
	FramePing         FrameType = "ping"
	FrameTyping       FrameType = "typing"
	FrameStatusUpdate FrameType = "statusUpdate" // 入站=客户端改状态请求；出站=状态广播
	FrameOffer        FrameType = "webrtc-offer"
	FrameAnswer       FrameType = "webrtc-answer"
	FrameICECandidate FrameType = "webrtc-ice-candidate"
	FrameEndCall      FrameType = "webrtc-end-call"

	// 出站
	FramePong         FrameType = "pong"
	FrameNewMessage   FrameType = "newMessage"
	FrameMessageSent  FrameType = "messageSent"
	FrameGroupMessage FrameType = "groupMessage"
	FrameIncomingCall FrameType = "incomingCall"
	FrameUserTyping   FrameType = "user_typing"
	FrameError        FrameType = "error"
)

// IsRelay webrtc 信令帧：原样转发，服务端只注入 fromUserId
func (t FrameType) IsRelay() bool {
	switch t {
	case FrameOffer, FrameAnswer, FrameICECandidate, FrameEndCall:
		return true
	}
	return false
}

func (t FrameType) known() bool {
	switch t {
	case FrameAuthenticate, FramePing, FrameTyping, FrameStatusUpdate,
		FrameOffer, FrameAnswer, FrameICECandidate, FrameEndCall,
		FramePong, FrameNewMessage, FrameMessageSent, FrameGroupMessage,
		FrameIncomingCall, FrameUserTyping, FrameError:
		return true
	}
	return false
}

// ErrUnknownFrameType 帧类型不在闭集内（外部来源帧）
type ErrUnknownFrameType struct {
	Type string
}

func (e *ErrUnknownFrameType) Error() string {
	return fmt.Sprintf("unknown frame type %q", e.Type)
}

// Frame 一条线缆帧。Fields 保留 type/timestamp 之外的全部字段，
// 转发时不丢字段（webrtc relay 依赖这一点）。
type Frame struct {
	Type      FrameType
	Timestamp int64
	Fields    map[string]any
}

// ParseFrame 两段解析：先取判别标签，未知类型立刻报错（调用方记日志、连接不关）
func ParseFrame(raw []byte) (*Frame, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	t, _ := m["type"].(string)
	ft := FrameType(t)
	if !ft.known() {
		return nil, &ErrUnknownFrameType{Type: t}
	}

	var ts int64
	if v, ok := m["timestamp"].(float64); ok {
		ts = int64(v)
	}
	delete(m, "type")
	delete(m, "timestamp")
	return &Frame{Type: ft, Timestamp: ts, Fields: m}, nil
}

// Marshal 帧编码；timestamp 缺省取当前毫秒
func (f *Frame) Marshal() ([]byte, error) {
	out := make(map[string]any, len(f.Fields)+2)
	for k, v := range f.Fields {
		out[k] = v
	}
	out["type"] = string(f.Type)
	ts := f.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	out["timestamp"] = ts
	return json.Marshal(out)
}

// NewFrame 出站帧构造
func NewFrame(t FrameType, fields map[string]any) *Frame {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Frame{Type: t, Fields: fields}
}

func MustMarshal(t FrameType, fields map[string]any) []byte {
	data, err := NewFrame(t, fields).Marshal()
	if err != nil {
		// map[string]any 编码只会因不可序列化的值失败，属编程错误
		panic(err)
	}
	return data
}

func ErrorFrame(msg string) []byte {
	return MustMarshal(FrameError, map[string]any{"message": msg})
}

// ---- 入站负载（json tag 经 mapstructure 宽松解码）----

type AuthenticatePayload struct {
	UserID string `json:"userId"`
}

type TypingPayload struct {
	TargetUserID string `json:"targetUserId"`
	ChatID       string `json:"chatId"`
	IsTyping     bool   `json:"isTyping"`
}

type StatusPayload struct {
	Status string `json:"status"`
}

type RelayPayload struct {
	TargetUserID string `json:"targetUserId"`
}

// Payload 将帧字段解码为类型化负载
func Payload[T any](f *Frame) (*T, error) {
	return decode.DecodeMap[T](f.Fields)
}
