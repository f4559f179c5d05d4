package store

import (
	"context"
	"errors"

	"qrpay-order-api/internal/model"
)

var (
	ErrAlreadyExists = errors.New("order already exists")
	ErrNotFound      = errors.New("order not found")
	ErrConflict      = errors.New("order status conflict")
)

// Store 订单存储契约
// CompareAndSwap 是唯一的变更入口：仅当当前状态等于 expect 时应用 mutate，
// 对并发调用方必须原子。Get 返回的订单一律是快照副本。
type Store interface {
	Create(ctx context.Context, o *model.Order) error
	Get(ctx context.Context, mOrderID string) (*model.Order, error)
	CompareAndSwap(ctx context.Context, mOrderID string, expect model.TradeStatus, mutate func(*model.Order)) (*model.Order, error)
}
