package main

import (
	"context"

	chatsvc "CorpChat/module/chat/service"
	usersvc "CorpChat/module/user/service"
	"CorpChat/service/storage"
)

// durableStore 拼装实时层的持久化边界：
// 状态真值写 Redis，副本落 Mongo 用户主档；群成员走 Mongo。
type durableStore struct {
	presence *storage.PresenceManager
}

func (s *durableStore) UpdateUserStatus(ctx context.Context, userID, status string) error {
	if _, err := s.presence.SetStatus(ctx, userID, status); err != nil {
		return err
	}
	return usersvc.UpdateUserStatus(ctx, userID, status)
}

func (s *durableStore) GetGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	return chatsvc.GetGroupMembers(ctx, groupID)
}
