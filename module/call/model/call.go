package model

import (
	"time"
)

const CollCall = "call"

// 呼叫状态流转：ringing -> accepted/rejected -> ended（missed 由超时落）
const (
	CallRinging  = "ringing"
	CallAccepted = "accepted"
	CallRejected = "rejected"
	CallEnded    = "ended"
	CallMissed   = "missed"
)

// Call 一次音视频呼叫记录。媒体流走 P2P，这里只留信令结果
type Call struct {
	CallID   string `bson:"call_id" json:"callId"`
	CallerID string `bson:"caller_id" json:"callerId"`
	CalleeID string `bson:"callee_id" json:"calleeId"`
	CallType string `bson:"call_type" json:"callType"` // audio / video
	Status   string `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}
