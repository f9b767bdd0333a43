package cache

import (
	"context"
	"time"
)

// BytesCache — best-effort кэш сериализованных записей кошелька.
// Недоступность кэша не считается ошибкой чтения: потребители обязаны
// уметь жить без него.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// DelPrefix инвалидирует все ключи с данным префиксом (после полного sync
	// или очистки кошелька).
	DelPrefix(ctx context.Context, prefix string) error
}
