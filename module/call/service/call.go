package service

import (
	"context"
	"time"

	callmodel "CorpChat/module/call/model"
	mgo "CorpChat/service/mgo"
	errs "CorpChat/tools/errs"
	ids "CorpChat/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CreateCall 新建呼叫记录，初始 ringing
func CreateCall(ctx context.Context, c *callmodel.Call) error {
	now := time.Now()
	if c.CallID == "" {
		c.CallID = ids.GenerateString()
	}
	c.Status = callmodel.CallRinging
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := mgo.Coll(callmodel.CollCall).InsertOne(ctx, c)
	return errs.WrapMsg(err, "create call")
}

// UpdateCallStatus 更新呼叫状态
func UpdateCallStatus(ctx context.Context, callID, status string) error {
	res, err := mgo.Coll(callmodel.CollCall).UpdateOne(
		ctx,
		bson.M{"call_id": callID},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
	)
	if err != nil {
		return errs.WrapMsg(err, "update call status")
	}
	if res.MatchedCount == 0 {
		return errs.ErrRecordNotFound.WithDetail(callID)
	}
	return nil
}

// GetCall 查单条呼叫
func GetCall(ctx context.Context, callID string) (*callmodel.Call, error) {
	var c callmodel.Call
	err := mgo.Coll(callmodel.CollCall).
		FindOne(ctx, bson.M{"call_id": callID}).
		Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WithDetail(callID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "get call")
	}
	return &c, nil
}
