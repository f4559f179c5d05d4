package event

// Publisher 支付事件发布契约，履约侧（发货/清结算）在交换机另一端消费
type Publisher interface {
	Publish(routingKey string, msg any) error
}

// Nop 空实现，内存模式与测试用
type Nop struct{}

func (Nop) Publish(string, any) error { return nil }
