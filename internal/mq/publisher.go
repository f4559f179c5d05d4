package mq

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/streadway/amqp"

	"qrpay-order-api/internal/dal"
)

// OrderPaidEvent 支付确认事件，发往 pay_events 交换机
// 这是履约（发货等）的边界：本服务只发布，不消费
type OrderPaidEvent struct {
	MOrderID      string `json:"m_order_id"`
	TradeNo       string `json:"trade_no"`
	Amount        string `json:"amount"`
	ReceiptAmount string `json:"receipt_amount"`
	Subject       string `json:"subject"`
	BuyerLogonID  string `json:"buyer_logon_id"`
	PaidAt        int64  `json:"paid_at"`
}

// Publisher event.Publisher 的 RabbitMQ 实现
type Publisher struct{}

func NewPublisher() *Publisher { return &Publisher{} }

func (p *Publisher) Publish(routingKey string, msg any) error {
	if dal.RabbitCh == nil {
		// MQ 未启用时静默跳过，回调链路不因事件缺失而失败
		return nil
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}
	err = dal.RabbitCh.Publish(
		"pay_events",
		routingKey,
		false, false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         b,
		},
	)
	if err != nil {
		log.Printf("publish %s failed: %v", routingKey, err)
	}
	return err
}
