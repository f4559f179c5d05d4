package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrpay-order-api/internal/model"
	"qrpay-order-api/internal/store"
)

func newOrder(t *testing.T, st store.Store, id string, status model.TradeStatus) {
	t.Helper()
	err := st.Create(context.Background(), &model.Order{
		MOrderID: id,
		Amount:   decimal.NewFromFloat(0.01),
		Subject:  "测试商品",
		Status:   status,
	})
	require.NoError(t, err)
}

func TestApplyForward(t *testing.T) {
	st := store.NewMemoryStore()
	eng := New(st)
	newOrder(t, st, "M1", model.StatusCreated)

	o, out, err := eng.Apply(context.Background(), "M1", Event{Status: model.StatusWaitBuyerPay})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Equal(t, model.StatusWaitBuyerPay, o.Status)

	o, out, err = eng.Apply(context.Background(), "M1", Event{
		Status:        model.StatusTradeSuccess,
		TradeNo:       "2024010122001",
		ReceiptAmount: decimal.NewFromFloat(0.01),
		BuyerLogonID:  "138****1234",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Equal(t, model.StatusTradeSuccess, o.Status)
	assert.Equal(t, "2024010122001", o.TradeNo)
	assert.Equal(t, "138****1234", o.BuyerLogonID)
}

func TestApplyRegressionNoOp(t *testing.T) {
	st := store.NewMemoryStore()
	eng := New(st)
	newOrder(t, st, "M1", model.StatusCreated)

	_, _, err := eng.Apply(context.Background(), "M1", Event{Status: model.StatusTradeSuccess, TradeNo: "T1"})
	require.NoError(t, err)

	// 更落后的事件（乱序回调）不得回退状态
	o, out, err := eng.Apply(context.Background(), "M1", Event{Status: model.StatusWaitBuyerPay})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, out)
	assert.Equal(t, model.StatusTradeSuccess, o.Status)
}

func TestApplyEqualStatusTouches(t *testing.T) {
	st := store.NewMemoryStore()
	eng := New(st)
	newOrder(t, st, "M1", model.StatusWaitBuyerPay)

	before, err := st.Get(context.Background(), "M1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	o, out, err := eng.Apply(context.Background(), "M1", Event{
		Status:       model.StatusWaitBuyerPay,
		NotifyDigest: "abc123",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, out)
	assert.Equal(t, "abc123", o.NotifyDigest)
	assert.True(t, o.UpdatedAt.After(before.UpdatedAt))
}

func TestApplyTerminalAbsorbs(t *testing.T) {
	st := store.NewMemoryStore()
	eng := New(st)
	newOrder(t, st, "M1", model.StatusTradeClosed)

	// 终态吸收一切事件，按成功上报且不触存储
	o, out, err := eng.Apply(context.Background(), "M1", Event{Status: model.StatusTradeSuccess, TradeNo: "T1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, out)
	assert.Equal(t, model.StatusTradeClosed, o.Status)
	assert.Empty(t, o.TradeNo)
}

func TestApplyFinishedOnlyFromSuccess(t *testing.T) {
	st := store.NewMemoryStore()
	eng := New(st)
	newOrder(t, st, "M1", model.StatusWaitBuyerPay)

	o, out, err := eng.Apply(context.Background(), "M1", Event{Status: model.StatusTradeFinished})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, out)
	assert.Equal(t, model.StatusWaitBuyerPay, o.Status)

	_, _, err = eng.Apply(context.Background(), "M1", Event{Status: model.StatusTradeSuccess, TradeNo: "T1"})
	require.NoError(t, err)
	o, out, err = eng.Apply(context.Background(), "M1", Event{Status: model.StatusTradeFinished})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Equal(t, model.StatusTradeFinished, o.Status)
}

func TestCloseOnlyBeforePay(t *testing.T) {
	st := store.NewMemoryStore()
	eng := New(st)
	newOrder(t, st, "M1", model.StatusWaitBuyerPay)

	o, out, err := eng.Close(context.Background(), "M1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Equal(t, model.StatusTradeClosed, o.Status)

	newOrder(t, st, "M2", model.StatusTradeSuccess)
	o, out, err = eng.Close(context.Background(), "M2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, out)
	assert.Equal(t, model.StatusTradeSuccess, o.Status)
}

func TestApplyNotFound(t *testing.T) {
	eng := New(store.NewMemoryStore())
	_, _, err := eng.Apply(context.Background(), "missing", Event{Status: model.StatusTradeSuccess})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// alwaysConflictStore 模拟持续被并发写方抢先的存储
type alwaysConflictStore struct {
	store.Store
	gets int
}

func (s *alwaysConflictStore) Get(ctx context.Context, id string) (*model.Order, error) {
	s.gets++
	return &model.Order{MOrderID: id, Status: model.StatusCreated}, nil
}

func (s *alwaysConflictStore) CompareAndSwap(context.Context, string, model.TradeStatus, func(*model.Order)) (*model.Order, error) {
	return nil, store.ErrConflict
}

func TestApplyConflictBounded(t *testing.T) {
	st := &alwaysConflictStore{}
	eng := New(st)

	_, _, err := eng.Apply(context.Background(), "M1", Event{Status: model.StatusWaitBuyerPay})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, casMaxRetry, st.gets)
}

func TestApplyConcurrentSuccessConverges(t *testing.T) {
	st := store.NewMemoryStore()
	eng := New(st)
	newOrder(t, st, "M1", model.StatusWaitBuyerPay)

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, out, err := eng.Apply(context.Background(), "M1", Event{
				Status:  model.StatusTradeSuccess,
				TradeNo: fmt.Sprintf("T%02d", i),
			})
			assert.NoError(t, err)
			mu.Lock()
			if out == OutcomeApplied {
				applied++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	// 恰好一个胜出者完成迁移，其余收敛为 no-op；trade_no 只写一次
	assert.Equal(t, 1, applied)
	o, err := st.Get(context.Background(), "M1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusTradeSuccess, o.Status)
	assert.NotEmpty(t, o.TradeNo)
}
