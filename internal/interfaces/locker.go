package interfaces

import (
	"context"
)

// KeyedLocker provides an exclusive critical section per key.
// Lock blocks until the key is free or ctx is done; the returned func releases it.
type KeyedLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
