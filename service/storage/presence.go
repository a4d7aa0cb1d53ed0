package storage

import (
	"context"
	"fmt"
	"time"

	"CorpChat/service/realtime"
	errs "CorpChat/tools/errs"

	"github.com/redis/go-redis/v9"
)

// ===== 配置 =====

type PresenceConfig struct {
	NodeID    string        // 节点ID（参与key命名）
	TTL       time.Duration // 状态键TTL：连接活着会被心跳续期；进程崩溃后自然过期回落 offline
	KeyPrefix string        // 默认 "presence"
}

func (c *PresenceConfig) norm() {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "presence"
	}
}

// ===== Lua 脚本 =====

// 原子写状态并返回旧值（广播去重用）
// KEYS[1] = status key
// ARGV[1] = status
// ARGV[2] = ttlSeconds
// 返回：旧状态（无则空串）
const luaSetStatus = `
local key = KEYS[1]
local old = redis.call("GET", key) or ""
redis.call("SET", key, ARGV[1], "EX", tonumber(ARGV[2]))
return old
`

// 下线：删键（键缺失=offline）
// KEYS[1] = status key
// 返回：1=删掉了；0=本就不存在（幂等）
const luaOffline = `
return redis.call("DEL", KEYS[1])
`

var (
	setStatusScript = redis.NewScript(luaSetStatus)
	offlineScript   = redis.NewScript(luaOffline)
)

// PresenceManager Redis 在线状态存储。实时层只算转移点，
// 持久的状态真值在这里（键缺失视为 offline）。
type PresenceManager struct {
	rdb *redis.Client
	cfg PresenceConfig
}

func NewPresenceManager(rdb *redis.Client, cfg PresenceConfig) *PresenceManager {
	cfg.norm()
	return &PresenceManager{rdb: rdb, cfg: cfg}
}

func (m *PresenceManager) key(userID string) string {
	return fmt.Sprintf("%s:u:%s", m.cfg.KeyPrefix, userID)
}

// SetStatus 写状态并返回旧状态
func (m *PresenceManager) SetStatus(ctx context.Context, userID, status string) (prev string, err error) {
	if !realtime.ValidStatus(status) {
		return "", errs.ErrBadStatusValue.WithDetail(status)
	}
	if status == realtime.StatusOffline {
		return "", m.Offline(ctx, userID)
	}
	res, err := setStatusScript.Run(ctx, m.rdb,
		[]string{m.key(userID)},
		status, int(m.cfg.TTL.Seconds()),
	).Result()
	if err != nil {
		return "", errs.WrapMsg(err, "presence set status")
	}
	prev, _ = res.(string)
	return prev, nil
}

// Offline 删除状态键；幂等
func (m *PresenceManager) Offline(ctx context.Context, userID string) error {
	if err := offlineScript.Run(ctx, m.rdb, []string{m.key(userID)}).Err(); err != nil {
		return errs.WrapMsg(err, "presence offline")
	}
	return nil
}

// GetStatus 查状态；键缺失返回 offline
func (m *PresenceManager) GetStatus(ctx context.Context, userID string) (string, error) {
	v, err := m.rdb.Get(ctx, m.key(userID)).Result()
	if err == redis.Nil {
		return realtime.StatusOffline, nil
	}
	if err != nil {
		return "", errs.WrapMsg(err, "presence get status")
	}
	return v, nil
}

// Touch 心跳续期（活跃连接定期调用，避免状态键过期误判下线）
func (m *PresenceManager) Touch(ctx context.Context, userID string) error {
	return m.rdb.Expire(ctx, m.key(userID), m.cfg.TTL).Err()
}
