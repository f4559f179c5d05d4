package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus 订单交易状态，与支付宝回传的 trade_status 保持同名
type TradeStatus string

const (
	StatusCreated       TradeStatus = "CREATED"
	StatusWaitBuyerPay  TradeStatus = "WAIT_BUYER_PAY"
	StatusTradeSuccess  TradeStatus = "TRADE_SUCCESS"
	StatusTradeFinished TradeStatus = "TRADE_FINISHED"
	StatusTradeClosed   TradeStatus = "TRADE_CLOSED"
)

// statusRank 状态推进顺序，TRADE_CLOSED 不参与比较（终态单独处理）
var statusRank = map[TradeStatus]int{
	StatusCreated:       0,
	StatusWaitBuyerPay:  1,
	StatusTradeSuccess:  2,
	StatusTradeFinished: 3,
}

// Rank 返回状态推进序号，TRADE_CLOSED 或未知状态返回 -1
func (s TradeStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Terminal 是否终态，终态订单吸收一切后续事件
func (s TradeStatus) Terminal() bool {
	return s == StatusTradeFinished || s == StatusTradeClosed
}

// Valid 是否为已知状态
func (s TradeStatus) Valid() bool {
	return s == StatusTradeClosed || s.Rank() >= 0
}

// Cancelable 是否允许撤单
func (s TradeStatus) Cancelable() bool {
	return s == StatusCreated || s == StatusWaitBuyerPay
}

// Order 商户订单
type Order struct {
	MOrderID      string          `gorm:"column:m_order_id;primaryKey" json:"m_order_id"` // 商户订单号，创建后不变
	TradeNo       string          `gorm:"column:trade_no" json:"trade_no"`                // 支付宝交易号，首次确认后不变
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(20,2)" json:"amount"`
	Subject       string          `gorm:"column:subject" json:"subject"`
	Status        TradeStatus     `gorm:"column:status" json:"status"`
	QRCode        string          `gorm:"column:qr_code" json:"qr_code"`
	ReceiptAmount decimal.Decimal `gorm:"column:receipt_amount;type:decimal(20,2)" json:"receipt_amount"`
	BuyerLogonID  string          `gorm:"column:buyer_logon_id" json:"buyer_logon_id"`
	NotifyDigest  string          `gorm:"column:notify_digest" json:"notify_digest,omitempty"` // 最近一次生效回调的去重摘要
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Order) TableName() string { return "p_pay_order" }

// Clone 返回订单快照副本，调用方持有的订单一律为副本
func (o *Order) Clone() *Order {
	cp := *o
	return &cp
}

// Redacted 返回对外展示副本：去重摘要是存储层记账字段，不出现在 API 响应里
func (o *Order) Redacted() *Order {
	cp := o.Clone()
	cp.NotifyDigest = ""
	return cp
}
