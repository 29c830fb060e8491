package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coregx/dqo/internal/logger"
)

type flakyPinger struct {
	fail  atomic.Bool
	calls atomic.Int32
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls.Add(1)
	if p.fail.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func TestHealthChecker_Basic(t *testing.T) {
	p := &flakyPinger{}
	hc := newHealthChecker(p, &logger.NoopLogger{}, 20*time.Millisecond)
	hc.start()
	defer hc.shutdown()

	assert.Eventually(t, func() bool { return p.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, hc.isHealthy())
	assert.False(t, hc.lastCheck().IsZero())

	p.fail.Store(true)
	assert.Eventually(t, func() bool { return !hc.isHealthy() }, time.Second, 5*time.Millisecond)
}

func TestHealthChecker_Shutdown(t *testing.T) {
	hc := newHealthChecker(&flakyPinger{}, &logger.NoopLogger{}, 10*time.Millisecond)
	hc.start()

	done := make(chan struct{})
	go func() {
		hc.shutdown()
		hc.shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("shutdown took too long")
	}
}
