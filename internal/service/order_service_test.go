package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrpay-order-api/internal/alipay"
	"qrpay-order-api/internal/config"
	"qrpay-order-api/internal/constant"
	"qrpay-order-api/internal/dto"
	"qrpay-order-api/internal/engine"
	"qrpay-order-api/internal/idgen"
	"qrpay-order-api/internal/model"
	"qrpay-order-api/internal/sign"
	"qrpay-order-api/internal/store"
)

var idgenOnce sync.Once

// gatewayStub 按 method 参数分发的假网关
type gatewayStub struct {
	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]string // method -> 响应体
	delay    time.Duration
}

func (g *gatewayStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := r.PostForm.Get("method")
	g.mu.Lock()
	g.calls[method]++
	body, ok := g.handlers[method]
	delay := g.delay
	g.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	_, _ = w.Write([]byte(body))
}

func (g *gatewayStub) setDelay(d time.Duration) {
	g.mu.Lock()
	g.delay = d
	g.mu.Unlock()
}

func (g *gatewayStub) callsOf(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[method]
}

func newTestService(t *testing.T) (*OrderService, *store.MemoryStore, *gatewayStub) {
	t.Helper()
	idgenOnce.Do(func() { idgen.Init(1) })

	gw := &gatewayStub{calls: map[string]int{}, handlers: map[string]string{}}
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	ali, err := alipay.NewClient(config.AlipayCfg{
		AppID:           "2021000000000001",
		AppPrivateKey:   base64.StdEncoding.EncodeToString(der),
		SignType:        sign.TypeRSA2,
		Charset:         "utf-8",
		Format:          "JSON",
		GatewayURL:      srv.URL,
		TimeoutSec:      5,
		RetryTimes:      1,
		RetryIntervalMs: 1,
	})
	require.NoError(t, err)

	st := store.NewMemoryStore()
	return NewOrderService(st, engine.New(st), ali), st, gw
}

func codeOf(t *testing.T, err error) int {
	t.Helper()
	ce, ok := err.(constant.Error)
	require.True(t, ok, "expected constant.Error, got %v", err)
	return ce.Code()
}

const precreateOK = `{"alipay_trade_precreate_response":{"code":"10000","msg":"Success","out_trade_no":"M1","qr_code":"https://qr.alipay.com/abc"},"sign":"x"}`

func TestCreateOrder(t *testing.T) {
	svc, st, gw := newTestService(t)
	gw.handlers["alipay.trade.precreate"] = precreateOK

	resp, err := svc.Create(context.Background(), dto.CreateOrderReq{
		OutTradeNo:  "M1",
		TotalAmount: decimal.NewFromFloat(0.01),
		Subject:     "测试商品",
	})
	require.NoError(t, err)
	assert.Equal(t, "M1", resp.OrderID)
	assert.Equal(t, "https://qr.alipay.com/abc", resp.QRCode)

	o, err := st.Get(context.Background(), "M1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCreated, o.Status)
	assert.Equal(t, "https://qr.alipay.com/abc", o.QRCode)
}

func TestCreateGeneratesOrderID(t *testing.T) {
	svc, _, gw := newTestService(t)
	gw.handlers["alipay.trade.precreate"] = precreateOK

	resp, err := svc.Create(context.Background(), dto.CreateOrderReq{
		TotalAmount: decimal.NewFromFloat(1.00),
		Subject:     "测试商品",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.OrderID)
}

func TestCreateDuplicateOrderID(t *testing.T) {
	svc, st, gw := newTestService(t)
	gw.handlers["alipay.trade.precreate"] = precreateOK

	require.NoError(t, st.Create(context.Background(), &model.Order{
		MOrderID: "M1",
		Amount:   decimal.NewFromFloat(0.01),
		Subject:  "已有订单",
		Status:   model.StatusCreated,
	}))

	_, err := svc.Create(context.Background(), dto.CreateOrderReq{
		OutTradeNo:  "M1",
		TotalAmount: decimal.NewFromFloat(0.01),
		Subject:     "测试商品",
	})
	assert.Equal(t, constant.CodeOrderAlreadyExist, codeOf(t, err))
	// 重复创建在落库前就被挡下，不打网关
	assert.Zero(t, gw.callsOf("alipay.trade.precreate"))
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), dto.CreateOrderReq{
		TotalAmount: decimal.Zero,
		Subject:     "x",
	})
	assert.Equal(t, constant.CodeOrderAmountInvalid, codeOf(t, err))

	_, err = svc.Create(context.Background(), dto.CreateOrderReq{
		TotalAmount: decimal.NewFromFloat(0.01),
		Subject:     "   ",
	})
	assert.Equal(t, constant.CodeMissingParams, codeOf(t, err))
}

func TestCreatePrecreateRejected(t *testing.T) {
	svc, st, gw := newTestService(t)
	gw.handlers["alipay.trade.precreate"] = `{"alipay_trade_precreate_response":{"code":"40004","msg":"Business Failed","sub_code":"ACQ.INVALID_PARAMETER","sub_msg":"参数无效"},"sign":"x"}`

	_, err := svc.Create(context.Background(), dto.CreateOrderReq{
		OutTradeNo:  "M1",
		TotalAmount: decimal.NewFromFloat(0.01),
		Subject:     "测试商品",
	})
	assert.Equal(t, constant.CodeProviderRejected, codeOf(t, err))

	// 预下单失败要关掉本地记录，不留悬挂的 CREATED 订单
	o, gerr := st.Get(context.Background(), "M1")
	require.NoError(t, gerr)
	assert.Equal(t, model.StatusTradeClosed, o.Status)
}

func TestQueryAdvancesToSuccess(t *testing.T) {
	svc, st, gw := newTestService(t)
	gw.handlers["alipay.trade.query"] = `{"alipay_trade_query_response":{"code":"10000","msg":"Success","out_trade_no":"M1","trade_no":"2024010122001","trade_status":"TRADE_SUCCESS","total_amount":"0.01","receipt_amount":"0.01","buyer_logon_id":"138****1234"},"sign":"x"}`

	require.NoError(t, st.Create(context.Background(), &model.Order{
		MOrderID: "M1", Amount: decimal.NewFromFloat(0.01), Subject: "x", Status: model.StatusWaitBuyerPay,
	}))

	o, err := svc.Query(context.Background(), "M1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusTradeSuccess, o.Status)
	assert.Equal(t, "2024010122001", o.TradeNo)
}

func TestQueryTradeNotExistMeansWaiting(t *testing.T) {
	svc, st, gw := newTestService(t)
	gw.handlers["alipay.trade.query"] = `{"alipay_trade_query_response":{"code":"40004","msg":"Business Failed","sub_code":"ACQ.TRADE_NOT_EXIST","sub_msg":"交易不存在"},"sign":"x"}`

	require.NoError(t, st.Create(context.Background(), &model.Order{
		MOrderID: "M1", Amount: decimal.NewFromFloat(0.01), Subject: "x", Status: model.StatusCreated,
	}))

	// 买家尚未扫码时网关查不到交易，等同等待付款而非错误
	o, err := svc.Query(context.Background(), "M1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitBuyerPay, o.Status)
}

func TestQueryTerminalSkipsGateway(t *testing.T) {
	svc, st, gw := newTestService(t)

	require.NoError(t, st.Create(context.Background(), &model.Order{
		MOrderID: "M1", Amount: decimal.NewFromFloat(0.01), Subject: "x", Status: model.StatusTradeClosed,
	}))

	o, err := svc.Query(context.Background(), "M1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusTradeClosed, o.Status)
	assert.Zero(t, gw.callsOf("alipay.trade.query"))
}

func TestQueryNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Query(context.Background(), "missing")
	assert.Equal(t, constant.CodeOrderNotFound, codeOf(t, err))
}

func TestCancelBeforePay(t *testing.T) {
	svc, st, gw := newTestService(t)
	gw.handlers["alipay.trade.cancel"] = `{"alipay_trade_cancel_response":{"code":"10000","msg":"Success","out_trade_no":"M1","action":"close","retry_flag":"N"},"sign":"x"}`

	require.NoError(t, st.Create(context.Background(), &model.Order{
		MOrderID: "M1", Amount: decimal.NewFromFloat(0.01), Subject: "x", Status: model.StatusWaitBuyerPay,
	}))

	o, err := svc.Cancel(context.Background(), "M1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusTradeClosed, o.Status)
}

func TestCancelPaidOrderRejected(t *testing.T) {
	svc, st, gw := newTestService(t)

	require.NoError(t, st.Create(context.Background(), &model.Order{
		MOrderID: "M1", Amount: decimal.NewFromFloat(0.01), Subject: "x", Status: model.StatusTradeSuccess,
	}))

	_, err := svc.Cancel(context.Background(), "M1")
	assert.Equal(t, constant.CodeOrderStatusInvalid, codeOf(t, err))
	assert.Zero(t, gw.callsOf("alipay.trade.cancel"))
}

func TestRefund(t *testing.T) {
	svc, st, gw := newTestService(t)
	gw.handlers["alipay.trade.refund"] = `{"alipay_trade_refund_response":{"code":"10000","msg":"Success","out_trade_no":"M1","trade_no":"2024010122001","fund_change":"Y","refund_fee":"0.01"},"sign":"x"}`

	require.NoError(t, st.Create(context.Background(), &model.Order{
		MOrderID: "M1", Amount: decimal.NewFromFloat(0.01), Subject: "x", Status: model.StatusTradeSuccess,
	}))

	resp, err := svc.Refund(context.Background(), dto.RefundReq{
		OutTradeNo:   "M1",
		RefundAmount: decimal.NewFromFloat(0.01),
		Reason:       "用户取消",
	})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "2024010122001", resp.RefundID)
}

func TestRefundStatusAndAmountChecks(t *testing.T) {
	svc, st, _ := newTestService(t)

	require.NoError(t, st.Create(context.Background(), &model.Order{
		MOrderID: "unpaid", Amount: decimal.NewFromFloat(0.01), Subject: "x", Status: model.StatusWaitBuyerPay,
	}))
	require.NoError(t, st.Create(context.Background(), &model.Order{
		MOrderID: "paid", Amount: decimal.NewFromFloat(1.00), Subject: "x", Status: model.StatusTradeSuccess,
	}))

	cases := []struct {
		name string
		req  dto.RefundReq
		code int
	}{
		{"缺订单号", dto.RefundReq{RefundAmount: decimal.NewFromFloat(0.01)}, constant.CodeMissingParams},
		{"金额非正", dto.RefundReq{OutTradeNo: "paid", RefundAmount: decimal.Zero}, constant.CodeOrderAmountInvalid},
		{"订单不存在", dto.RefundReq{OutTradeNo: "missing", RefundAmount: decimal.NewFromFloat(0.01)}, constant.CodeOrderNotFound},
		{"未支付不可退", dto.RefundReq{OutTradeNo: "unpaid", RefundAmount: decimal.NewFromFloat(0.01)}, constant.CodeRefundOrderInvalid},
		{"超额退款", dto.RefundReq{OutTradeNo: "paid", RefundAmount: decimal.NewFromFloat(2.00)}, constant.CodeRefundAmountError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Refund(context.Background(), tc.req)
			assert.Equal(t, tc.code, codeOf(t, err))
		})
	}
}

func TestRefundGatewayRejected(t *testing.T) {
	svc, st, gw := newTestService(t)
	gw.handlers["alipay.trade.refund"] = `{"alipay_trade_refund_response":{"code":"40004","msg":"Business Failed","sub_code":"ACQ.SELLER_BALANCE_NOT_ENOUGH","sub_msg":"商户余额不足"},"sign":"x"}`

	require.NoError(t, st.Create(context.Background(), &model.Order{
		MOrderID: "M1", Amount: decimal.NewFromFloat(0.01), Subject: "x", Status: model.StatusTradeSuccess,
	}))

	_, err := svc.Refund(context.Background(), dto.RefundReq{
		OutTradeNo:   "M1",
		RefundAmount: decimal.NewFromFloat(0.01),
	})
	assert.Equal(t, constant.CodeRefundFailed, codeOf(t, err))
}

func TestCancelClosedOrder(t *testing.T) {
	svc, st, gw := newTestService(t)

	require.NoError(t, st.Create(context.Background(), &model.Order{
		MOrderID: "M1", Amount: decimal.NewFromFloat(0.01), Subject: "x", Status: model.StatusTradeClosed,
	}))

	// 已关闭订单再撤单给专属错误码，且不打网关
	_, err := svc.Cancel(context.Background(), "M1")
	assert.Equal(t, constant.CodeOrderClosed, codeOf(t, err))
	assert.Zero(t, gw.callsOf("alipay.trade.cancel"))
}

func TestQueryDeadlineExceeded(t *testing.T) {
	svc, st, gw := newTestService(t)
	gw.setDelay(300 * time.Millisecond)
	gw.handlers["alipay.trade.query"] = `{"alipay_trade_query_response":{"code":"10000","msg":"Success"},"sign":"x"}`

	require.NoError(t, st.Create(context.Background(), &model.Order{
		MOrderID: "M1", Amount: decimal.NewFromFloat(0.01), Subject: "x", Status: model.StatusWaitBuyerPay,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Query(ctx, "M1")
	assert.Equal(t, constant.CodeTimeout, codeOf(t, err))
}

func TestCreateGatewayDown(t *testing.T) {
	svc, _, _ := newTestService(t)
	// 没有注册 precreate 响应，网关一律 502

	_, err := svc.Create(context.Background(), dto.CreateOrderReq{
		OutTradeNo:  fmt.Sprintf("M-%d", idgen.New()),
		TotalAmount: decimal.NewFromFloat(0.01),
		Subject:     "测试商品",
	})
	assert.Equal(t, constant.CodeProviderUnavailable, codeOf(t, err))
}
