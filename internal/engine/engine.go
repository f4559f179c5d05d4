package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"qrpay-order-api/internal/model"
	"qrpay-order-api/internal/store"
)

// ErrConflict 有界重试后仍与并发写方冲突，上抛给调用方，绝不静默丢弃
var ErrConflict = errors.New("engine: concurrent update conflict")

// Outcome 事件处理结果
type Outcome int

const (
	OutcomeApplied Outcome = iota // 状态迁移已落地
	OutcomeNoOp                   // 无迁移（更落后/相等/终态吸收）
)

// Event 一次状态事件，来源可以是主动查单也可以是异步回调
// 两条链路汇入同一个 Apply，靠存储层 CAS 收敛
type Event struct {
	Status        model.TradeStatus
	TradeNo       string          // 支付宝交易号，首次确认时落库
	ReceiptAmount decimal.Decimal // 实收金额，回调携带
	BuyerLogonID  string
	NotifyDigest  string // 回调去重摘要，随迁移同一次 CAS 写入
}

// casMaxRetry CAS 冲突重试上限
const casMaxRetry = 3

type Engine struct {
	st store.Store
}

func New(st store.Store) *Engine {
	return &Engine{st: st}
}

// allowed 迁移表：当前状态 -> 事件状态 是否为合法推进
func allowed(cur, next model.TradeStatus) bool {
	switch next {
	case model.StatusWaitBuyerPay:
		return cur == model.StatusCreated
	case model.StatusTradeSuccess:
		return cur == model.StatusCreated || cur == model.StatusWaitBuyerPay
	case model.StatusTradeClosed:
		return cur.Cancelable()
	case model.StatusTradeFinished:
		return cur == model.StatusTradeSuccess
	default:
		return false
	}
}

// Apply 将一次状态事件合入订单
// 单调性规则：比当前更落后的事件一律 no-op；相等的事件 no-op 但刷新 updated_at
//（回调场景同时记录去重摘要）；更推进的事件走 CAS，冲突则读-比-写重试，
// 超过上限返回 ErrConflict。终态吸收一切事件并报告成功。
func (e *Engine) Apply(ctx context.Context, mOrderID string, ev Event) (*model.Order, Outcome, error) {
	for attempt := 1; attempt <= casMaxRetry; attempt++ {
		cur, err := e.st.Get(ctx, mOrderID)
		if err != nil {
			return nil, OutcomeNoOp, err
		}

		// 终态吸收：幂等 no-op，按成功上报
		if cur.Status.Terminal() {
			return cur, OutcomeNoOp, nil
		}

		// 相等状态：no-op，但要刷新 updated_at；回调还要落去重摘要
		if ev.Status == cur.Status {
			touched, err := e.st.CompareAndSwap(ctx, mOrderID, cur.Status, func(o *model.Order) {
				if ev.NotifyDigest != "" {
					o.NotifyDigest = ev.NotifyDigest
				}
			})
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			if err != nil {
				return nil, OutcomeNoOp, err
			}
			return touched, OutcomeNoOp, nil
		}

		// 更落后或迁移表未列出的事件：纯 no-op，不触存储
		if !allowed(cur.Status, ev.Status) {
			return cur, OutcomeNoOp, nil
		}

		next, err := e.st.CompareAndSwap(ctx, mOrderID, cur.Status, func(o *model.Order) {
			o.Status = ev.Status
			if ev.TradeNo != "" && o.TradeNo == "" {
				o.TradeNo = ev.TradeNo
			}
			if !ev.ReceiptAmount.IsZero() {
				o.ReceiptAmount = ev.ReceiptAmount
			}
			if ev.BuyerLogonID != "" {
				o.BuyerLogonID = ev.BuyerLogonID
			}
			if ev.NotifyDigest != "" {
				o.NotifyDigest = ev.NotifyDigest
			}
		})
		if errors.Is(err, store.ErrConflict) {
			// 并发写方抢先，基于新状态重试
			continue
		}
		if err != nil {
			return nil, OutcomeNoOp, err
		}
		return next, OutcomeApplied, nil
	}
	return nil, OutcomeNoOp, fmt.Errorf("%w: order %s after %d attempts", ErrConflict, mOrderID, casMaxRetry)
}

// Close 显式撤单迁移，仅 CREATED/WAIT_BUYER_PAY 可关单
// 调用方必须先拿到网关的撤单确认再调用
func (e *Engine) Close(ctx context.Context, mOrderID string) (*model.Order, Outcome, error) {
	return e.Apply(ctx, mOrderID, Event{Status: model.StatusTradeClosed})
}
