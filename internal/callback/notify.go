package callback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"qrpay-order-api/internal/constant"
	"qrpay-order-api/internal/dto"
	"qrpay-order-api/internal/engine"
	"qrpay-order-api/internal/event"
	"qrpay-order-api/internal/model"
	"qrpay-order-api/internal/mq"
	"qrpay-order-api/internal/notify"
	"qrpay-order-api/internal/sign"
	"qrpay-order-api/internal/store"
)

// Ack 回调应答。网关只认应答体字面量 success，其余一律按失败处理并重试，
// 重试窗口最长 25 小时，所以 Handle 必须对重复投递幂等。
type Ack bool

const (
	AckSuccess Ack = true
	AckFail    Ack = false
)

func (a Ack) Body() string {
	if a {
		return "success"
	}
	return "fail"
}

// Handler 异步回调处理：验签、去重、合入状态机
type Handler struct {
	verifier *sign.Verifier
	st       store.Store
	eng      *engine.Engine
	pub      event.Publisher
}

func NewHandler(verifier *sign.Verifier, st store.Store, eng *engine.Engine, pub event.Publisher) *Handler {
	return &Handler{verifier: verifier, st: st, eng: eng, pub: pub}
}

// Digest 回调去重摘要，取回调的身份字段做 sha256
func Digest(p dto.NotifyParams) string {
	content := fmt.Sprintf("%s|%s|%s|%s", p.OutTradeNo, p.TradeNo, p.TradeStatus, p.TotalAmount)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Handle 处理一次回调投递
// 验签失败或订单不存在 → fail 且不触存储；重复投递 → success 但不重放业务效果；
// 存储/引擎异常 → fail 让网关稍后重试（有意的反压，不是故障）
func (h *Handler) Handle(ctx context.Context, raw map[string]string) Ack {
	p := dto.NotifyFromMap(raw)
	log.Printf("[NOTIFY] 收到回调: out_trade_no=%s trade_no=%s status=%s amount=%s",
		p.OutTradeNo, p.TradeNo, p.TradeStatus, p.TotalAmount)

	// 1) 验签，伪造回调绝不触碰订单状态
	if ok, reason := h.verifier.Verify(raw, p.Sign); !ok {
		log.Printf("[NOTIFY] ❌ 验签失败: code=%d reason=%s out_trade_no=%s",
			constant.CodeNotifySignError, reason, p.OutTradeNo)
		notify.Alert("warn", "回调验签失败",
			fmt.Sprintf("订单号: %s\n原因: %s\n交易号: %s", p.OutTradeNo, reason, p.TradeNo))
		return AckFail
	}

	// 2) 去重摘要
	dg := Digest(p)

	// 3) 查单，不凭回调凭空造单
	o, err := h.st.Get(ctx, p.OutTradeNo)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[NOTIFY] 订单不存在: out_trade_no=%s", p.OutTradeNo)
		return AckFail
	}
	if err != nil {
		log.Printf("[NOTIFY] 查单失败: %v", err)
		return AckFail
	}

	// 4) 重复投递：应答成功但不重放业务效果
	if o.NotifyDigest == dg {
		log.Printf("[NOTIFY] 重复回调，已处理过: code=%d out_trade_no=%s",
			constant.CodeNotifyRepeat, p.OutTradeNo)
		return AckSuccess
	}

	// 金额必须与落库订单一致
	if p.TotalAmount != "" {
		amt, aerr := decimal.NewFromString(p.TotalAmount)
		if aerr != nil || !amt.Equal(o.Amount) {
			log.Printf("[NOTIFY] ⚠️ 回调金额不一致: out_trade_no=%s 回调=%s 订单=%s",
				p.OutTradeNo, p.TotalAmount, o.Amount)
			notify.Alert("warn", "回调金额不一致",
				fmt.Sprintf("订单号: %s\n回调金额: %s\n订单金额: %s", p.OutTradeNo, p.TotalAmount, o.Amount))
			return AckFail
		}
	}

	// 5) 合入状态机，去重摘要随状态迁移同一次 CAS 落库
	ev := engine.Event{
		Status:       model.TradeStatus(p.TradeStatus),
		TradeNo:      p.TradeNo,
		BuyerLogonID: p.BuyerLogonID,
		NotifyDigest: dg,
	}
	if p.ReceiptAmount != "" {
		ev.ReceiptAmount, _ = decimal.NewFromString(p.ReceiptAmount)
	}
	next, outcome, err := h.eng.Apply(ctx, p.OutTradeNo, ev)
	if err != nil {
		if errors.Is(err, engine.ErrConflict) {
			notify.Alert("warn", "回调合入冲突",
				fmt.Sprintf("订单号: %s\n状态: %s\n重试耗尽，等待网关重投", p.OutTradeNo, p.TradeStatus))
		}
		log.Printf("[NOTIFY] 状态合入失败: out_trade_no=%s err=%v", p.OutTradeNo, err)
		return AckFail
	}

	// 首次确认支付成功时发布履约事件
	if outcome == engine.OutcomeApplied && next.Status == model.StatusTradeSuccess {
		evt := mq.OrderPaidEvent{
			MOrderID:      next.MOrderID,
			TradeNo:       next.TradeNo,
			Amount:        next.Amount.String(),
			ReceiptAmount: next.ReceiptAmount.String(),
			Subject:       next.Subject,
			BuyerLogonID:  next.BuyerLogonID,
			PaidAt:        time.Now().Unix(),
		}
		if perr := h.pub.Publish("order.paid", evt); perr != nil {
			// 事件发布失败不影响应答：状态已落库，回调幂等性不依赖 MQ
			log.Printf("[NOTIFY] ⚠️ order.paid 事件发布失败: %v", perr)
		}
	}

	log.Printf("[NOTIFY] ✅ 回调处理完成: out_trade_no=%s status=%s", p.OutTradeNo, next.Status)
	return AckSuccess
}
