package global

import (
	"os"
	"strconv"
	"time"

	"CorpChat/logger"
	mgo "CorpChat/service/mgo"
	storeredis "CorpChat/service/storage/redis"
	ids "CorpChat/tools/ids"
)

// AppConfig 进程级配置；env 覆盖默认值（见 Load）
type AppConfig struct {
	NodeID  string
	Port    int
	NodeNum int64 // 雪花节点号

	JWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI string
	MongoDB  string

	NatsServers string // 逗号分隔；空=不挂事件桥

	HeartbeatInterval time.Duration
}

var Global = AppConfig{
	NodeID:            "corpchat-1",
	Port:              8080,
	NodeNum:           100,
	JWTSecret:         "mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o=",
	RedisAddr:         "127.0.0.1:6379",
	MongoURI:          "mongodb://127.0.0.1:27017",
	MongoDB:           "corpchat",
	HeartbeatInterval: 30 * time.Second,
}

// Load 从环境变量覆盖默认配置
func Load() {
	if v := os.Getenv("NODE_ID"); v != "" {
		Global.NodeID = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			Global.Port = p
		}
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		Global.JWTSecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		Global.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		Global.RedisPassword = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		Global.MongoURI = v
	}
	if v := os.Getenv("MONGO_DB"); v != "" {
		Global.MongoDB = v
	}
	if v := os.Getenv("NATS_SERVERS"); v != "" {
		Global.NatsServers = v
	}
}

func JWTSecret() []byte {
	return []byte(Global.JWTSecret)
}

// ConfigIds 配置雪花id生成
func ConfigIds() {
	logger.Infof("配置id生成 node=%d", Global.NodeNum)
	ids.SetNodeID(Global.NodeNum)
}

func RedisConfig() storeredis.Config {
	return storeredis.Config{
		Addr:     Global.RedisAddr,
		Password: Global.RedisPassword,
		DB:       Global.RedisDB,
	}
}

func MongoConfig() mgo.Config {
	return mgo.Config{
		URI:      Global.MongoURI,
		Database: Global.MongoDB,
	}
}
