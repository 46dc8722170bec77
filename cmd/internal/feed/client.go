package feed

import (
	"sync"

	v1 "pinbot/shared/contracts/feed/v1"
)

// Client is one authenticated feed connection.
//
// Send is never closed by the server so concurrent publishers cannot panic;
// done signals shutdown and Close is idempotent.
type Client struct {
	SessionID string
	Send      chan v1.Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(sessionID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueue
	}
	return &Client{
		SessionID: sessionID,
		Send:      make(chan v1.Envelope, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// Done is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close signals the client goroutines to stop.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
