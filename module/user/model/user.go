package model

import (
	"time"
)

const CollUser = "user"

// User 用户主档。实时层只关心 user_id 与 status，
// 其余字段服务于联系人列表/设置页等 REST 读取。
type User struct {
	UserID   string `bson:"user_id" json:"userId"` // 全局唯一、不可变（主键）
	Nickname string `bson:"nickname" json:"nickname"`
	FaceURL  string `bson:"face_url,omitempty" json:"faceUrl,omitempty"`
	Email    string `bson:"email,omitempty" json:"email,omitempty"`

	// Status 在线状态：online/away/busy/offline。
	// 实时真值在 Redis，这里是最近一次落库的副本（重连后前端重拉用）
	Status string `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}
