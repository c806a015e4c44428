package services

import (
	"context"
	"errors"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy 控制纯增量写入的指数退避重试。
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

// DefaultRetryPolicy 是生产默认值。
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: 50 * time.Millisecond,
	MaxInterval:     time.Second,
	MaxRetries:      3,
}

// NoRetry 关闭重试，测试中用于观察首个错误。
var NoRetry = RetryPolicy{}

// retryWrite 重试纯增量写入。增量可交换，重放不会改变最终语义；
// 不存在 / 非法参数等确定性错误直接返回。
func retryWrite(ctx context.Context, policy RetryPolicy, op func() error) error {
	if policy.MaxRetries == 0 {
		return op()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, policy.MaxRetries), ctx))
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, repositories.ErrVideoNotFound):
		return false
	case errors.Is(err, docstore.ErrInvalidPath), errors.Is(err, docstore.ErrInvalidQuery):
		return false
	}
	return true
}
