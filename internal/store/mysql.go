package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"qrpay-order-api/internal/model"
)

// MysqlStore 基于 MySQL 的订单存储
// CompareAndSwap 用条件 UPDATE 实现乐观锁：WHERE 带上期望状态，影响行数为 0 即冲突
type MysqlStore struct {
	db *gorm.DB
}

func NewMysqlStore(db *gorm.DB) *MysqlStore {
	return &MysqlStore{db: db}
}

func (s *MysqlStore) Create(ctx context.Context, o *model.Order) error {
	cp := o.Clone()
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	err := s.db.WithContext(ctx).Create(cp).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert order failed: %w", err)
	}
	return nil
}

func (s *MysqlStore) Get(ctx context.Context, mOrderID string) (*model.Order, error) {
	var m model.Order
	err := s.db.WithContext(ctx).Where("m_order_id = ?", mOrderID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order failed: %w", err)
	}
	return &m, nil
}

// 状态迁移可变列，m_order_id/amount/subject/created_at 不参与更新
var casColumns = []string{"trade_no", "status", "qr_code", "receipt_amount", "buyer_logon_id", "notify_digest", "updated_at"}

func (s *MysqlStore) CompareAndSwap(ctx context.Context, mOrderID string, expect model.TradeStatus, mutate func(*model.Order)) (*model.Order, error) {
	cur, err := s.Get(ctx, mOrderID)
	if err != nil {
		return nil, err
	}
	if cur.Status != expect {
		return nil, ErrConflict
	}
	cp := cur.Clone()
	mutate(cp)
	cp.MOrderID = cur.MOrderID
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = time.Now()

	// 使用后台上下文落库：一次迁移要么完整可见要么不发生，不随请求取消而中断
	res := s.db.WithContext(context.Background()).
		Model(&model.Order{}).
		Where("m_order_id = ? AND status = ?", mOrderID, string(expect)).
		Select(casColumns).
		Updates(cp)
	if res.Error != nil {
		return nil, fmt.Errorf("update order failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// 读到写之间被并发写方抢先
		return nil, ErrConflict
	}
	return cp, nil
}
