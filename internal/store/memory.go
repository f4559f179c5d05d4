package store

import (
	"context"
	"sync"
	"time"

	"qrpay-order-api/internal/model"
)

// MemoryStore 进程内存储，无基础设施场景与测试用
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]*model.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*model.Order)}
}

func (s *MemoryStore) Create(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.MOrderID]; ok {
		return ErrAlreadyExists
	}
	now := time.Now()
	cp := o.Clone()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.orders[o.MOrderID] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, mOrderID string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[mOrderID]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

// CompareAndSwap 条件变更，锁内完成读-改-写，对调用方整体原子
// 注意不在读与写之间检查 ctx：单次状态迁移要么全部落地要么不发生
func (s *MemoryStore) CompareAndSwap(_ context.Context, mOrderID string, expect model.TradeStatus, mutate func(*model.Order)) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[mOrderID]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != expect {
		return nil, ErrConflict
	}
	cp := o.Clone()
	mutate(cp)
	cp.MOrderID = o.MOrderID // 主键不可变
	cp.CreatedAt = o.CreatedAt
	cp.UpdatedAt = time.Now()
	s.orders[mOrderID] = cp
	return cp.Clone(), nil
}
