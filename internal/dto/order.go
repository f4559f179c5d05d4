package dto

import (
	"github.com/shopspring/decimal"

	"qrpay-order-api/internal/model"
)

// CreateOrderReq 创建支付二维码请求
type CreateOrderReq struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
	Subject     string          `json:"subject"`
	OutTradeNo  string          `json:"out_trade_no"` // 可选，不传自动生成
}

// CreateOrderResp 创建支付二维码响应
type CreateOrderResp struct {
	Code    int    `json:"code"`
	QRCode  string `json:"qr_code"`
	OrderID string `json:"order_id"`
	Amount  string `json:"amount"`
	Subject string `json:"subject"`
}

// QueryOrderResp 查单响应
type QueryOrderResp struct {
	Code        int               `json:"code"`
	OrderID     string            `json:"order_id"`
	TradeStatus model.TradeStatus `json:"trade_status"`
	Amount      string            `json:"amount"`
	Data        *model.Order      `json:"data,omitempty"`
}

// RefundReq 退款请求
type RefundReq struct {
	OutTradeNo   string          `json:"out_trade_no"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Reason       string          `json:"reason"` // 可选
}

// RefundResp 退款响应
type RefundResp struct {
	Code     int    `json:"code"`
	OK       bool   `json:"ok"`
	RefundID string `json:"refund_id,omitempty"`
}
