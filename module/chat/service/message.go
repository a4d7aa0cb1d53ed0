package service

import (
	"context"
	"time"

	chatmodel "CorpChat/module/chat/model"
	mgo "CorpChat/service/mgo"
	errs "CorpChat/tools/errs"
	ids "CorpChat/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SaveMessage 落库并补齐 MsgID/CreateTime
func SaveMessage(ctx context.Context, m *chatmodel.Message) error {
	if m.MsgID == "" {
		m.MsgID = ids.GenerateString()
	}
	if m.CreateTime.IsZero() {
		m.CreateTime = time.Now()
	}
	_, err := mgo.Coll(chatmodel.CollMessage).InsertOne(ctx, m)
	return errs.WrapMsg(err, "save message")
}

// ListDirectMessages 双向直聊历史，按时间倒序
func ListDirectMessages(ctx context.Context, userA, userB string, limit int64) ([]chatmodel.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender_id": userA, "receiver_id": userB},
			bson.M{"sender_id": userB, "receiver_id": userA},
		},
	}
	return findMessages(ctx, filter, limit)
}

// ListGroupMessages 群聊历史，按时间倒序
func ListGroupMessages(ctx context.Context, groupID string, limit int64) ([]chatmodel.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	return findMessages(ctx, bson.M{"group_id": groupID}, limit)
}

func findMessages(ctx context.Context, filter bson.M, limit int64) ([]chatmodel.Message, error) {
	opts := options.Find().
		SetSort(bson.M{"create_time": -1}).
		SetLimit(limit)
	cur, err := mgo.Coll(chatmodel.CollMessage).Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "find messages")
	}
	defer cur.Close(ctx)
	var out []chatmodel.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode messages")
	}
	return out, nil
}

// CreateGroup 建群；owner 自动入成员列表
func CreateGroup(ctx context.Context, g *chatmodel.Group) error {
	if g.GroupID == "" {
		g.GroupID = ids.GenerateString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	seen := false
	for _, m := range g.MemberIDs {
		if m == g.OwnerID {
			seen = true
			break
		}
	}
	if !seen {
		g.MemberIDs = append(g.MemberIDs, g.OwnerID)
	}
	_, err := mgo.Coll(chatmodel.CollGroup).InsertOne(ctx, g)
	return errs.WrapMsg(err, "create group")
}

// GetGroupMembers 群成员 userID 列表
func GetGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	var g chatmodel.Group
	err := mgo.Coll(chatmodel.CollGroup).
		FindOne(ctx, bson.M{"group_id": groupID}).
		Decode(&g)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WithDetail(groupID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "get group")
	}
	return g.MemberIDs, nil
}
