package model

import (
	"time"
)

const CollGroup = "group"

// Group 群组：成员列表内嵌（规模小的企业群够用，巨型群再拆表）
type Group struct {
	GroupID   string   `bson:"group_id" json:"groupId"`
	Name      string   `bson:"name" json:"name"`
	OwnerID   string   `bson:"owner_id" json:"ownerId"`
	MemberIDs []string `bson:"member_ids" json:"memberIds"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
