package alipay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"qrpay-order-api/internal/config"
	"qrpay-order-api/internal/model"
	"qrpay-order-api/internal/sign"
	"qrpay-order-api/internal/utils"
)

// Client 支付宝当面付网关客户端
// 配置构造期传入后不再变化，响应一律归一化成显式类型
type Client struct {
	cfg     config.AlipayCfg
	signer  *sign.Signer
	gateway string
	hc      *http.Client
}

func NewClient(cfg config.AlipayCfg) (*Client, error) {
	signer, err := sign.NewSigner(cfg.AppPrivateKey, cfg.SignType)
	if err != nil {
		return nil, fmt.Errorf("init alipay signer failed: %w", err)
	}
	return &Client{
		cfg:     cfg,
		signer:  signer,
		gateway: cfg.Gateway(),
		hc:      &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}, nil
}

// buildParams 组装公共参数并签名
func (c *Client) buildParams(method string, bizContent map[string]string, withNotify bool) (url.Values, error) {
	biz, err := json.Marshal(bizContent)
	if err != nil {
		return nil, fmt.Errorf("marshal biz_content failed: %w", err)
	}
	params := map[string]string{
		"app_id":      c.cfg.AppID,
		"method":      method,
		"format":      c.cfg.Format,
		"charset":     c.cfg.Charset,
		"sign_type":   c.cfg.SignType,
		"timestamp":   time.Now().Format("2006-01-02 15:04:05"),
		"version":     "1.0",
		"biz_content": string(biz),
	}
	if withNotify && c.cfg.NotifyURL != "" {
		params["notify_url"] = c.cfg.NotifyURL
	}
	// 网关请求签名串包含 sign_type 且按键序参与排序，区别于回调验签
	sig, err := c.signer.SignContent(requestSignContent(params))
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("sign", sig)
	return form, nil
}

// requestSignContent 出站请求的待签串：除 sign 与空值外全部参数按键名升序拼接
func requestSignContent(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == "sign" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteString("&")
		}
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(params[k])
	}
	return sb.String()
}

// execute 发起网关调用并解析指定响应节点
// 传输层失败按 ErrUnavailable 处理并带间隔重试；业务拒绝不重试
func (c *Client) execute(ctx context.Context, method string, bizContent map[string]string, withNotify bool, respKey string, out any) error {
	form, err := c.buildParams(method, bizContent, withNotify)
	if err != nil {
		return err
	}

	var body []byte
	interval := time.Duration(c.cfg.RetryIntervalMs) * time.Millisecond
	err = utils.DoWithRetry(ctx, c.cfg.RetryTimes, interval, func() error {
		b, err := c.doPost(ctx, form)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		// 保留原始错误链，调用方据此区分超时与其它传输失败
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: bad gateway response: %v", ErrUnavailable, err)
	}
	node, ok := envelope[respKey]
	if !ok {
		return fmt.Errorf("%w: response node %s missing", ErrUnavailable, respKey)
	}

	var base baseResp
	if err := json.Unmarshal(node, &base); err != nil {
		return fmt.Errorf("%w: parse %s failed: %v", ErrUnavailable, respKey, err)
	}
	if base.Code != "10000" {
		log.Printf("[ALIPAY] %s 网关拒绝: code=%s sub_code=%s sub_msg=%s", method, base.Code, base.SubCode, base.SubMsg)
		return &RejectedError{Code: base.Code, SubCode: base.SubCode, SubMsg: base.SubMsg}
	}
	if out != nil {
		if err := json.Unmarshal(node, out); err != nil {
			return fmt.Errorf("parse %s payload failed: %w", respKey, err)
		}
	}
	return nil
}

func (c *Client) doPost(ctx context.Context, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gateway, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("new request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset="+c.cfg.Charset)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response error: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status code: %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// Precreate 当面付预下单 - alipay.trade.precreate，返回二维码链接
func (c *Client) Precreate(ctx context.Context, outTradeNo string, totalAmount decimal.Decimal, subject string) (*PrecreateResult, error) {
	var raw struct {
		OutTradeNo string `json:"out_trade_no"`
		QRCode     string `json:"qr_code"`
	}
	biz := map[string]string{
		"out_trade_no": outTradeNo,
		"total_amount": totalAmount.String(),
		"subject":      subject,
	}
	if err := c.execute(ctx, "alipay.trade.precreate", biz, true, "alipay_trade_precreate_response", &raw); err != nil {
		return nil, err
	}
	if raw.QRCode == "" {
		return nil, fmt.Errorf("%w: precreate returned empty qr_code", ErrUnavailable)
	}
	log.Printf("[ALIPAY] 预下单成功: out_trade_no=%s", outTradeNo)
	return &PrecreateResult{OutTradeNo: outTradeNo, QRCode: raw.QRCode}, nil
}

// Query 查询订单状态 - alipay.trade.query
func (c *Client) Query(ctx context.Context, outTradeNo string) (*TradeResult, error) {
	var raw struct {
		OutTradeNo    string `json:"out_trade_no"`
		TradeNo       string `json:"trade_no"`
		TradeStatus   string `json:"trade_status"`
		TotalAmount   string `json:"total_amount"`
		ReceiptAmount string `json:"receipt_amount"`
		BuyerLogonID  string `json:"buyer_logon_id"`
	}
	biz := map[string]string{"out_trade_no": outTradeNo}
	if err := c.execute(ctx, "alipay.trade.query", biz, false, "alipay_trade_query_response", &raw); err != nil {
		return nil, err
	}
	res := &TradeResult{
		OutTradeNo:   raw.OutTradeNo,
		TradeNo:      raw.TradeNo,
		TradeStatus:  model.TradeStatus(raw.TradeStatus),
		BuyerLogonID: raw.BuyerLogonID,
	}
	if raw.TotalAmount != "" {
		res.TotalAmount, _ = decimal.NewFromString(raw.TotalAmount)
	}
	if raw.ReceiptAmount != "" {
		res.ReceiptAmount, _ = decimal.NewFromString(raw.ReceiptAmount)
	}
	return res, nil
}

// Cancel 撤销订单 - alipay.trade.cancel
func (c *Client) Cancel(ctx context.Context, outTradeNo string) (*CancelResult, error) {
	var raw struct {
		OutTradeNo string `json:"out_trade_no"`
		Action     string `json:"action"`
		RetryFlag  string `json:"retry_flag"`
	}
	biz := map[string]string{"out_trade_no": outTradeNo}
	if err := c.execute(ctx, "alipay.trade.cancel", biz, false, "alipay_trade_cancel_response", &raw); err != nil {
		return nil, err
	}
	log.Printf("[ALIPAY] 撤销订单成功: out_trade_no=%s action=%s", outTradeNo, raw.Action)
	return &CancelResult{OutTradeNo: outTradeNo, Action: raw.Action, RetryFlag: raw.RetryFlag}, nil
}

// Refund 订单退款 - alipay.trade.refund
// 以 out_trade_no 为键在网关侧幂等
func (c *Client) Refund(ctx context.Context, outTradeNo string, refundAmount decimal.Decimal, reason string) (*RefundResult, error) {
	var raw struct {
		OutTradeNo string `json:"out_trade_no"`
		TradeNo    string `json:"trade_no"`
		FundChange string `json:"fund_change"`
		RefundFee  string `json:"refund_fee"`
	}
	biz := map[string]string{
		"out_trade_no":  outTradeNo,
		"refund_amount": refundAmount.String(),
	}
	if reason != "" {
		biz["refund_reason"] = reason
	}
	if err := c.execute(ctx, "alipay.trade.refund", biz, false, "alipay_trade_refund_response", &raw); err != nil {
		return nil, err
	}
	res := &RefundResult{OutTradeNo: outTradeNo, TradeNo: raw.TradeNo, FundChange: raw.FundChange}
	if raw.RefundFee != "" {
		res.RefundFee, _ = decimal.NewFromString(raw.RefundFee)
	}
	log.Printf("[ALIPAY] 退款成功: out_trade_no=%s amount=%s", outTradeNo, refundAmount)
	return res, nil
}
