package sessions

import (
	"context"

	"github.com/jrsteele09/go-session-gateway/api"
)

// Store is the durable tier behind the cache. Implementations own the
// persisted copy of each record; the engine never interprets a transport
// failure here as "session does not exist" on write paths, only on Get.
type Store interface {
	Get(ctx context.Context, userID string) api.Result[Record]
	Save(ctx context.Context, record Record) api.Result[api.Ack]
	Invalidate(ctx context.Context, userID string) api.Result[api.Ack]
}
