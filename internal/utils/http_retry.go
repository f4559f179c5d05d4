package utils

import (
	"context"
	"fmt"
	"log"
	"time"
)

// DoWithRetry 以固定间隔重试 fn，maxRetries 为总尝试次数
// 只适合瞬态失败（网络抖动/超时）；确定性失败由调用方在 fn 外识别后不再进入
func DoWithRetry(ctx context.Context, maxRetries int, interval time.Duration, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		log.Printf("[RETRY] attempt %d/%d failed: %v", attempt, maxRetries, err)
		if attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
	return err
}
