package dal

import (
	"log"
	"qrpay-order-api/internal/config"

	"github.com/streadway/amqp"
)

var RabbitConn *amqp.Connection
var RabbitCh *amqp.Channel

// InitRabbitMQ 初始化支付事件交换机与队列
// 未配置 URL 时跳过，发布方按 nil 通道降级（本地/内存模式不依赖 MQ）
func InitRabbitMQ() {
	url := config.C.RabbitMQ.URL
	if url == "" {
		log.Printf("rabbitmq url empty, event publishing disabled")
		return
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		log.Fatalf("rabbitmq dial failed: %v", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbitmq channel failed: %v", err)
	}

	// exchange & queues
	if err := ch.ExchangeDeclare("pay_events", "topic", true, false, false, false, nil); err != nil {
		log.Fatalf("exchange declare failed: %v", err)
	}
	if _, err := ch.QueueDeclare("order_paid", true, false, false, false, nil); err != nil {
		log.Fatalf("queue declare order_paid failed: %v", err)
	}
	if err := ch.QueueBind("order_paid", "order.paid", "pay_events", false, nil); err != nil {
		log.Fatalf("queue bind order_paid failed: %v", err)
	}

	RabbitConn = conn
	RabbitCh = ch
}
