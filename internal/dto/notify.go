package dto

// NotifyParams 支付宝异步回调的关键字段
// 验签始终基于原始参数 map，本结构只做字段提取
type NotifyParams struct {
	OutTradeNo    string
	TradeNo       string
	TradeStatus   string
	TotalAmount   string
	ReceiptAmount string
	BuyerLogonID  string
	GmtPayment    string
	Sign          string
	SignType      string
}

func NotifyFromMap(m map[string]string) NotifyParams {
	return NotifyParams{
		OutTradeNo:    m["out_trade_no"],
		TradeNo:       m["trade_no"],
		TradeStatus:   m["trade_status"],
		TotalAmount:   m["total_amount"],
		ReceiptAmount: m["receipt_amount"],
		BuyerLogonID:  m["buyer_logon_id"],
		GmtPayment:    m["gmt_payment"],
		Sign:          m["sign"],
		SignType:      m["sign_type"],
	}
}
