package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"qrpay-order-api/internal/alipay"
	"qrpay-order-api/internal/constant"
	"qrpay-order-api/internal/dto"
	"qrpay-order-api/internal/engine"
	"qrpay-order-api/internal/idgen"
	"qrpay-order-api/internal/model"
	"qrpay-order-api/internal/store"
)

// OrderService 订单编排层：参数校验、网关调用、状态机推进
type OrderService struct {
	st  store.Store
	eng *engine.Engine
	ali *alipay.Client
}

func NewOrderService(st store.Store, eng *engine.Engine, ali *alipay.Client) *OrderService {
	return &OrderService{st: st, eng: eng, ali: ali}
}

// mapProviderErr 网关错误映射成对外错误码
func mapProviderErr(err error) constant.Error {
	var rej *alipay.RejectedError
	if errors.As(err, &rej) {
		return constant.NewError(constant.CodeProviderRejected).WithData(rej.SubMsg)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return constant.NewError(constant.CodeTimeout)
	}
	return constant.NewError(constant.CodeProviderUnavailable)
}

// Create 创建扫码支付订单
// 先落本地 CREATED 记录再调网关预下单：同 out_trade_no 的重复创建被
// 存储唯一键挡掉，这是创建幂等的根基
func (s *OrderService) Create(ctx context.Context, req dto.CreateOrderReq) (*dto.CreateOrderResp, error) {
	if req.TotalAmount.LessThanOrEqual(decimal.Zero) {
		return nil, constant.NewError(constant.CodeOrderAmountInvalid)
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, constant.NewError(constant.CodeMissingParams)
	}

	orderID := strings.TrimSpace(req.OutTradeNo)
	if orderID == "" {
		orderID = strconv.FormatUint(idgen.New(), 10)
	}

	o := &model.Order{
		MOrderID: orderID,
		Amount:   req.TotalAmount,
		Subject:  subject,
		Status:   model.StatusCreated,
	}
	if err := s.st.Create(ctx, o); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, constant.NewError(constant.CodeOrderAlreadyExist)
		}
		return nil, constant.NewError(constant.CodeDatabaseError)
	}

	log.Printf("创建支付: order_id=%s amount=%s subject=%s", orderID, req.TotalAmount, subject)
	pre, err := s.ali.Precreate(ctx, orderID, req.TotalAmount, subject)
	if err != nil {
		// 预下单失败就关掉本地记录，避免悬挂的 CREATED 订单
		if _, _, cerr := s.eng.Close(ctx, orderID); cerr != nil {
			log.Printf("关闭预下单失败订单异常: order_id=%s err=%v", orderID, cerr)
		}
		return nil, mapProviderErr(err)
	}

	// 二维码链接回填订单，冲突说明回调已先行推进，不影响响应
	if _, err := s.st.CompareAndSwap(ctx, orderID, model.StatusCreated, func(o *model.Order) {
		o.QRCode = pre.QRCode
	}); err != nil && !errors.Is(err, store.ErrConflict) {
		log.Printf("回填二维码失败: order_id=%s err=%v", orderID, err)
	}

	return &dto.CreateOrderResp{
		Code:    constant.CodeSuccess,
		QRCode:  pre.QRCode,
		OrderID: orderID,
		Amount:  req.TotalAmount.String(),
		Subject: subject,
	}, nil
}

// Query 查单并把网关侧状态合入本地状态机（轮询链路）
func (s *OrderService) Query(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := s.st.Get(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, constant.NewError(constant.CodeOrderNotFound)
	}
	if err != nil {
		return nil, constant.NewError(constant.CodeDatabaseError)
	}
	// 终态订单不再打网关
	if o.Status.Terminal() {
		return o, nil
	}

	tr, err := s.ali.Query(ctx, orderID)
	if err != nil {
		var rej *alipay.RejectedError
		if errors.As(err, &rej) && rej.TradeNotExist() {
			// 预下单后买家尚未扫码，网关查不到交易，等同等待付款
			next, _, aerr := s.eng.Apply(ctx, orderID, engine.Event{Status: model.StatusWaitBuyerPay})
			if aerr != nil {
				return nil, mapEngineErr(aerr)
			}
			return next, nil
		}
		return nil, mapProviderErr(err)
	}

	next, _, err := s.eng.Apply(ctx, orderID, engine.Event{
		Status:        tr.TradeStatus,
		TradeNo:       tr.TradeNo,
		ReceiptAmount: tr.ReceiptAmount,
		BuyerLogonID:  tr.BuyerLogonID,
	})
	if err != nil {
		return nil, mapEngineErr(err)
	}
	return next, nil
}

// Cancel 撤单：仅未支付订单可撤，先拿网关确认再关本地状态
func (s *OrderService) Cancel(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := s.st.Get(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, constant.NewError(constant.CodeOrderNotFound)
	}
	if err != nil {
		return nil, constant.NewError(constant.CodeDatabaseError)
	}
	if o.Status == model.StatusTradeClosed {
		return nil, constant.NewError(constant.CodeOrderClosed)
	}
	if !o.Status.Cancelable() {
		return nil, constant.NewError(constant.CodeOrderStatusInvalid)
	}

	if _, err := s.ali.Cancel(ctx, orderID); err != nil {
		return nil, mapProviderErr(err)
	}

	next, outcome, err := s.eng.Close(ctx, orderID)
	if err != nil {
		return nil, mapEngineErr(err)
	}
	if outcome == engine.OutcomeNoOp && next.Status != model.StatusTradeClosed {
		// 撤单确认与支付成功赛跑且支付先到：按状态冲突上报，不回退
		return nil, constant.NewError(constant.CodeOrderStatusInvalid)
	}
	log.Printf("撤销订单成功: order_id=%s", orderID)
	return next, nil
}

// Refund 退款：单次幂等退款迁移，网关侧以 out_trade_no 为键幂等
func (s *OrderService) Refund(ctx context.Context, req dto.RefundReq) (*dto.RefundResp, error) {
	if req.OutTradeNo == "" {
		return nil, constant.NewError(constant.CodeMissingParams)
	}
	if req.RefundAmount.LessThanOrEqual(decimal.Zero) {
		return nil, constant.NewError(constant.CodeOrderAmountInvalid)
	}

	o, err := s.st.Get(ctx, req.OutTradeNo)
	if errors.Is(err, store.ErrNotFound) {
		return nil, constant.NewError(constant.CodeOrderNotFound)
	}
	if err != nil {
		return nil, constant.NewError(constant.CodeDatabaseError)
	}
	if o.Status != model.StatusTradeSuccess && o.Status != model.StatusTradeFinished {
		return nil, constant.NewError(constant.CodeRefundOrderInvalid)
	}
	if req.RefundAmount.GreaterThan(o.Amount) {
		return nil, constant.NewError(constant.CodeRefundAmountError)
	}

	res, err := s.ali.Refund(ctx, req.OutTradeNo, req.RefundAmount, req.Reason)
	if err != nil {
		// 网关明确拒绝退款时给退款专属错误码，携带拒绝原因
		var rej *alipay.RejectedError
		if errors.As(err, &rej) {
			return nil, constant.NewError(constant.CodeRefundFailed).WithData(rej.SubMsg)
		}
		return nil, mapProviderErr(err)
	}
	log.Printf("退款成功: order_id=%s amount=%s", req.OutTradeNo, req.RefundAmount)
	return &dto.RefundResp{Code: constant.CodeSuccess, OK: true, RefundID: res.TradeNo}, nil
}

func mapEngineErr(err error) constant.Error {
	if errors.Is(err, engine.ErrConflict) {
		return constant.NewError(constant.CodeOrderConflict)
	}
	if errors.Is(err, store.ErrNotFound) {
		return constant.NewError(constant.CodeOrderNotFound)
	}
	return constant.NewError(constant.CodeDatabaseError)
}
