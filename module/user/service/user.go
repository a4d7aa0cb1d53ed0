package service

import (
	"context"
	"time"

	mgo "CorpChat/service/mgo"
	errs "CorpChat/tools/errs"

	usermodel "CorpChat/module/user/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func GetUser(ctx context.Context, userID string) (*usermodel.User, error) {
	var u usermodel.User
	err := mgo.Coll(usermodel.CollUser).
		FindOne(ctx, bson.M{"user_id": userID}).
		Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WithDetail(userID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "get user")
	}
	return &u, nil
}

// UpsertUser 按 user_id 插入或更新主档
func UpsertUser(ctx context.Context, u *usermodel.User) error {
	now := time.Now()
	u.UpdatedAt = now
	update := bson.M{
		"$set": bson.M{
			"nickname":   u.Nickname,
			"face_url":   u.FaceURL,
			"email":      u.Email,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"user_id":    u.UserID,
			"status":     u.Status,
			"created_at": now,
		},
	}
	_, err := mgo.Coll(usermodel.CollUser).UpdateOne(
		ctx,
		bson.M{"user_id": u.UserID},
		update,
		options.Update().SetUpsert(true),
	)
	return errs.WrapMsg(err, "upsert user")
}

// UpdateUserStatus 落库最近状态（实时真值在 Redis）
func UpdateUserStatus(ctx context.Context, userID, status string) error {
	_, err := mgo.Coll(usermodel.CollUser).UpdateOne(
		ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
	)
	return errs.WrapMsg(err, "update user status")
}

// ListUsers 联系人列表（简单全量，前端自己过滤）
func ListUsers(ctx context.Context, limit int64) ([]usermodel.User, error) {
	if limit <= 0 {
		limit = 200
	}
	cur, err := mgo.Coll(usermodel.CollUser).Find(ctx, bson.M{}, options.Find().SetLimit(limit))
	if err != nil {
		return nil, errs.WrapMsg(err, "list users")
	}
	defer cur.Close(ctx)
	var out []usermodel.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode users")
	}
	return out, nil
}
