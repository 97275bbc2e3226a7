package cache

import (
	"context"
	"time"
)

// BytesCache — необязательный кэш байтов. nil-реализация допустима везде,
// где он используется: кэш всегда "лучшее усилие".
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
