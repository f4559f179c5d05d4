package alipay

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"qrpay-order-api/internal/model"
)

// ErrUnavailable 网关不可达（网络错误/超时/5xx），瞬态，可安全重试
var ErrUnavailable = errors.New("alipay: gateway unavailable")

// RejectedError 网关业务拒绝（code != 10000），永久性错误，不在本层重试
type RejectedError struct {
	Code    string
	SubCode string
	SubMsg  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("alipay rejected: code=%s sub_code=%s sub_msg=%s", e.Code, e.SubCode, e.SubMsg)
}

// TradeNotExist 预下单后买家尚未扫码时查单会返回该子码，业务上等同于等待付款
func (e *RejectedError) TradeNotExist() bool {
	return e.SubCode == "ACQ.TRADE_NOT_EXIST"
}

// baseResp 网关响应公共字段
type baseResp struct {
	Code    string `json:"code"`
	Msg     string `json:"msg"`
	SubCode string `json:"sub_code"`
	SubMsg  string `json:"sub_msg"`
}

// PrecreateResult 预下单结果
type PrecreateResult struct {
	OutTradeNo string
	QRCode     string // 二维码链接，商家侧展示
}

// TradeResult 查单结果，归一化后的结构，核心层不接触网关原始字段
type TradeResult struct {
	OutTradeNo    string
	TradeNo       string
	TradeStatus   model.TradeStatus
	TotalAmount   decimal.Decimal
	ReceiptAmount decimal.Decimal
	BuyerLogonID  string
}

// CancelResult 撤单结果
type CancelResult struct {
	OutTradeNo string
	Action     string // close: 关闭交易 / refund: 已产生退款
	RetryFlag  string // Y 时网关要求重试撤单
}

// RefundResult 退款结果
type RefundResult struct {
	OutTradeNo string
	TradeNo    string
	FundChange string // Y: 本次退款发生了资金变动
	RefundFee  decimal.Decimal
}
