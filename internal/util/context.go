// Package util provides naming, context and struct helpers shared by the dqo packages.
package util

import (
	"context"
	"time"
)

// WithTimeout derives a context with timeout from parent. A nil parent means
// context.Background, used by background work such as dialect detection and health checks.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}
