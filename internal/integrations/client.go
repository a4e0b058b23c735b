// Package integrations holds the thin REST clients for the SaaS systems
// the platform reads from (HubSpot, Gong) and posts to (Slack), plus the
// sync jobs that pull changes since the ledger watermark.
package integrations

import (
	"context"
	"time"
)

const retryAttempts = 3

// withRetry runs fn up to retryAttempts times with square backoff between
// attempts. Respects context cancellation between retries.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == retryAttempts {
			break
		}
		backoff := time.Duration(attempt*attempt) * 100 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
