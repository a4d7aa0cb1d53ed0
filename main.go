package main

import (
	"context"
	"fmt"
	"strings"

	"CorpChat/global"
	"CorpChat/logger"
	mid "CorpChat/middleware"
	midsec "CorpChat/middleware/security"
	callhandler "CorpChat/module/call"
	chathandler "CorpChat/module/chat"
	"CorpChat/module/user"
	mgo "CorpChat/service/mgo"
	"CorpChat/service/natsx"
	"CorpChat/service/realtime"
	"CorpChat/service/storage"
	storeredis "CorpChat/service/storage/redis"

	"github.com/gin-gonic/gin"
)

func main() {
	global.Load()
	global.ConfigIds()

	ctx := context.Background()

	// 1) 存储
	if err := storeredis.Init(global.RedisConfig()); err != nil {
		logger.Errorf("redis init failed: %v", err)
		return
	}
	if err := mgo.Init(ctx, global.MongoConfig()); err != nil {
		logger.Errorf("mongo init failed: %v", err)
		return
	}

	presence := storage.NewPresenceManager(storeredis.Client(), storage.PresenceConfig{
		NodeID: global.Global.NodeID,
	})
	store := &durableStore{presence: presence}

	// 2) 事件桥（可选）
	var bridge *natsx.Bridge
	if global.Global.NatsServers != "" {
		b, err := natsx.NewBridge(natsx.Config{
			Servers: strings.Split(global.Global.NatsServers, ","),
			Name:    global.Global.NodeID,
		})
		if err != nil {
			logger.Warnf("nats bridge disabled: %v", err)
		} else {
			bridge = b
			defer bridge.Close()
		}
	}

	// 3) 实时层：注册表 + 路由 + WS 端点（构造注入，进程内单实例）
	reg := realtime.NewRegistry(store, bridge)
	router := realtime.NewRouter(reg, store)
	wsServer := realtime.NewWSServer(realtime.WSConfig{
		HeartbeatInterval: global.Global.HeartbeatInterval,
	}, reg, router)

	// 4) HTTP + WebSocket
	mid.Manager().SetAuth(midsec.Middleware(midsec.DefaultOptions(global.JWTSecret())))

	r := gin.New()
	r.Use(gin.Recovery())

	mid.GET(r, "/ws", wsServer.HandleWS, mid.RouteOpt{IsAuth: true})

	mid.POST(r, "/api/login", user.HandlerLogin, mid.RouteOpt{IsAuth: false})
	mid.GET(r, "/api/contacts", user.HandlerContacts, mid.RouteOpt{IsAuth: true})

	ch := chathandler.NewHandler(reg, bridge)
	mid.POST(r, "/api/messages", ch.HandlerSendMessage, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/api/messages", ch.HandlerHistory, mid.RouteOpt{IsAuth: true})
	mid.POST(r, "/api/groups", ch.HandlerCreateGroup, mid.RouteOpt{IsAuth: true})
	mid.POST(r, "/api/groups/:groupId/messages", ch.HandlerSendGroupMessage, mid.RouteOpt{IsAuth: true})

	cl := callhandler.NewHandler(reg)
	mid.POST(r, "/api/calls", cl.HandlerCreateCall, mid.RouteOpt{IsAuth: true})
	mid.PUT(r, "/api/calls/:callId", cl.HandlerUpdateCall, mid.RouteOpt{IsAuth: true})

	addr := fmt.Sprintf(":%d", global.Global.Port)
	logger.Infof("[HTTP] Listening on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Errorf("HTTP server failed: %v", err)
	}
}
