package mgo

import (
	"context"
	"sync"
	"time"

	"CorpChat/logger"
	errs "CorpChat/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config Mongo 连接配置
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration // 单次连接超时（默认 5s）
	MaxRetry int           // 启动重试次数（默认 3）
}

func (c *Config) norm() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = 3
	}
}

type MongoManager struct {
	mu     sync.RWMutex
	client *mongo.Client
	db     *mongo.Database
}

var globalMgr MongoManager

// Init 连接并 ping，带退避重试；启动路径调用
func Init(ctx context.Context, cfg Config) error {
	cfg.norm()

	backoff := 200 * time.Millisecond
	var lastErr error
	for i := 0; i < cfg.MaxRetry; i++ {
		cctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		cli, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.URI))
		if err == nil {
			err = cli.Ping(cctx, readpref.Primary())
		}
		cancel()
		if err == nil {
			globalMgr.mu.Lock()
			globalMgr.client = cli
			globalMgr.db = cli.Database(cfg.Database)
			globalMgr.mu.Unlock()
			logger.Infof("[mgo] connected db=%s", cfg.Database)
			return nil
		}
		lastErr = err
		logger.Warnf("[mgo] connect attempt %d failed: %v", i+1, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
	return errs.WrapMsg(lastErr, "mongo connect")
}

// DB 获取数据库句柄
func DB() *mongo.Database {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.db == nil {
		panic("mongo not initialized, call Init first")
	}
	return globalMgr.db
}

// Coll 按名取集合
func Coll(name string) *mongo.Collection {
	return DB().Collection(name)
}

// Close 断开连接
func Close(ctx context.Context) error {
	globalMgr.mu.Lock()
	defer globalMgr.mu.Unlock()
	if globalMgr.client == nil {
		return nil
	}
	err := globalMgr.client.Disconnect(ctx)
	globalMgr.client = nil
	globalMgr.db = nil
	return err
}
