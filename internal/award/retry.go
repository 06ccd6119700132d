package award

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxWriteRetries = 4

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(b, maxWriteRetries)
}

// isTransient reports whether a storage error is worth retrying.
func isTransient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.Aborted, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func (s *service) retry(ctx context.Context, op string, fn func() error) error {
	operation := func() error {
		err := fn()
		if err == nil || isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.RetryNotify(
		operation,
		backoff.WithContext(s.newBackOff(), ctx),
		func(err error, d time.Duration) {
			s.logger.Warn("ledger write failed, retrying",
				zap.String("op", op),
				zap.Error(err),
				zap.Duration("backoff", d))
		},
	)
}
