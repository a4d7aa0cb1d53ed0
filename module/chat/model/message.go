package model

import (
	"time"
)

const CollMessage = "message"

// Message 一条聊天消息（直聊或群聊二选一：ReceiverID 与 GroupID 互斥）。
// json tag 与前端推送帧里的 message 字段保持一致。
type Message struct {
	MsgID      string `bson:"msg_id" json:"id"`
	SenderID   string `bson:"sender_id" json:"senderId"`
	ReceiverID string `bson:"receiver_id,omitempty" json:"receiverId,omitempty"`
	GroupID    string `bson:"group_id,omitempty" json:"groupId,omitempty"`

	Content     string `bson:"content" json:"content"`
	ContentType int32  `bson:"content_type" json:"contentType"` // 0=text 1=image 2=file

	CreateTime time.Time `bson:"create_time" json:"timestamp"`
}
