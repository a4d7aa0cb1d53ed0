package realtime

import (
	"context"
	"sync"
	"time"

	"CorpChat/logger"
	errs "CorpChat/tools/errs"
)

// Store 实时层依赖的持久化边界：状态落库、群成员解析。
// 真实现由 redis/mongo 拼装，单测注入 fake。
type Store interface {
	UpdateUserStatus(ctx context.Context, userID, status string) error
	GetGroupMembers(ctx context.Context, groupID string) ([]string, error)
}

// EventBridge 可选事件出口（NATS）；nil 表示不挂接
type EventBridge interface {
	PublishPresence(userID, status string)
}

const storeTimeout = 3 * time.Second

// Registry userID -> *Session 的权威映射，进程内单实例、构造注入。
// 同一用户重复 authenticate 按 last-writer-wins 顶替，被顶掉的 socket
// 只从映射里摘除、不主动关闭（接受这一竞态）。
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store  Store
	bridge EventBridge
}

func NewRegistry(store Store, bridge EventBridge) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		store:    store,
		bridge:   bridge,
	}
}

// Register 绑定 userID 与会话并广播上线。
// 先落库（失败仅记日志，注册照常生效），再对其他所有会话广播 statusUpdate。
func (r *Registry) Register(ctx context.Context, userID string, sess *Session) {
	sess.bindUser(userID)

	r.mu.Lock()
	r.sessions[userID] = sess
	r.mu.Unlock()

	r.persistStatus(ctx, userID, StatusOnline)
	r.broadcastStatus(userID, StatusOnline)
	logger.Infof("[registry] register user=%s", userID)
}

// Unregister 摘除会话并广播下线；幂等。
// 只有当前映射仍指向这条会话才会摘除——被 LWW 顶掉的旧 socket
// 关闭时不能把接替者踢下线。
func (r *Registry) Unregister(ctx context.Context, userID string, sess *Session) {
	if userID == "" {
		return
	}

	r.mu.Lock()
	cur, ok := r.sessions[userID]
	if !ok || cur != sess {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, userID)
	r.mu.Unlock()

	r.persistStatus(ctx, userID, StatusOffline)
	r.broadcastStatus(userID, StatusOffline)
	logger.Infof("[registry] unregister user=%s", userID)
}

// Lookup 返回可写的在线会话；未知用户或连接已关闭都算不在线
func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.RLock()
	sess, ok := r.sessions[userID]
	r.mu.RUnlock()
	if !ok || sess.Closed() {
		return nil, false
	}
	return sess, true
}

// SetStatus 客户端显式改状态（away/busy/online/offline）。
// 非法值返回错误、状态不动；合法则先落库再向其他会话广播。
func (r *Registry) SetStatus(ctx context.Context, userID, status string) error {
	if !ValidStatus(status) {
		return errs.ErrBadStatusValue.WithDetail(status)
	}
	r.persistStatus(ctx, userID, status)
	r.broadcastStatus(userID, status)
	return nil
}

// Snapshot 当前在线 userID 列表
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for uid := range r.sessions {
		out = append(out, uid)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) persistStatus(ctx context.Context, userID, status string) {
	if r.store == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := r.store.UpdateUserStatus(sctx, userID, status); err != nil {
		logger.Errorf("[registry] persist status user=%s status=%s err=%v", userID, status, err)
	}
	if r.bridge != nil {
		r.bridge.PublishPresence(userID, status)
	}
}

// broadcastStatus 向除本人外的全部在线会话推 statusUpdate
func (r *Registry) broadcastStatus(userID, status string) {
	data := MustMarshal(FrameStatusUpdate, map[string]any{
		"userId": userID,
		"status": status,
	})
	r.Broadcast(userID, data)
}
