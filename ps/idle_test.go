package ps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdleMonitorZeroWaitNeverIdle(t *testing.T) {
	m := newIdleMonitor(0)
	assert.False(t, m.idle())
	time.Sleep(10 * time.Millisecond)
	assert.False(t, m.idle())
}

func TestIdleMonitorIdleAfterInterval(t *testing.T) {
	m := newIdleMonitor(20 * time.Millisecond)
	assert.False(t, m.idle())
	time.Sleep(30 * time.Millisecond)
	assert.True(t, m.idle())
}

func TestIdleMonitorNotIdleWhileInFlight(t *testing.T) {
	m := newIdleMonitor(10 * time.Millisecond)
	m.send()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, m.idle())
	m.recv()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, m.idle())
}
