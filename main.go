package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"qrpay-order-api/internal/alipay"
	"qrpay-order-api/internal/callback"
	"qrpay-order-api/internal/config"
	"qrpay-order-api/internal/dal"
	"qrpay-order-api/internal/engine"
	"qrpay-order-api/internal/event"
	"qrpay-order-api/internal/handler"
	"qrpay-order-api/internal/idgen"
	"qrpay-order-api/internal/middleware"
	"qrpay-order-api/internal/mq"
	"qrpay-order-api/internal/service"
	"qrpay-order-api/internal/sign"
	"qrpay-order-api/internal/store"
)

// newStore 按配置选择订单存储后端
func newStore() store.Store {
	switch config.C.Store.Backend {
	case "redis":
		dal.InitRedis()
		return store.NewRedisStore(dal.RedisClient)
	case "mysql":
		dal.InitOrderDB()
		return store.NewMysqlStore(dal.OrderDB)
	default:
		return store.NewMemoryStore()
	}
}

func main() {
	// load config env
	config.Init()

	// init infra
	st := newStore()
	dal.InitRabbitMQ()
	idgen.InitFromEnv()
	go idgen.CheckSystemClock()

	// 核心组件：验签器与网关客户端在构造期拿到不可变配置
	verifier, err := sign.NewVerifier(config.C.Alipay.AlipayPublicKey, config.C.Alipay.SignType)
	if err != nil {
		log.Fatalf("init verifier failed: %v", err)
	}
	aliClient, err := alipay.NewClient(config.C.Alipay)
	if err != nil {
		log.Fatalf("init alipay client failed: %v", err)
	}

	eng := engine.New(st)
	var pub event.Publisher = mq.NewPublisher()
	svc := service.NewOrderService(st, eng, aliClient)
	cb := callback.NewHandler(verifier, st, eng, pub)

	// http server
	if config.C.Server.Mode != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recover(), middleware.AccessLog())
	r.LoadHTMLGlob("templates/*")

	ph := handler.NewPayHandler(svc)
	nh := handler.NewNotifyHandler(cb)

	r.GET("/paynow", ph.PayNow)
	api := r.Group("/api")
	{
		api.POST("/pay/create", ph.Create)
		api.GET("/order/query/:order_id", ph.Query)
		api.POST("/order/cancel/:order_id", ph.Cancel)
		api.POST("/refund", ph.Refund)
		api.POST("/notify", nh.Notify)
		api.GET("/notify", nh.NotifyCheck)
	}

	addr := ":" + config.C.Server.Port
	log.Printf("listening %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatal(err)
	}
}
