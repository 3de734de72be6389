package ethereum

import "context"

// HeadSource delivers new block headers.
type HeadSource interface {
	// SubscribeNewHeads subscribes to new block headers. The subscription
	// is dropped when ctx is done.
	SubscribeNewHeads(ctx context.Context) (<-chan Head, error)
}

// WSClient defines the WebSocket subscription interface.
type WSClient interface {
	HeadSource

	// Close closes the WebSocket connection.
	Close() error
}
