package ps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrRoutingInvariantMessage(t *testing.T) {
	err := ErrRoutingInvariant{WorkerPartition: 5, NumWorkers: 3}
	assert.Equal(t, "pull answer key should be the partition ID itself: got worker partition 5, have 3 worker partitions", err.Error())
}

func TestErrModelLoadIncompleteMessage(t *testing.T) {
	err := ErrModelLoadIncomplete{WorkerPartition: 2}
	assert.Contains(t, err.Error(), "worker partition 2")
}

func TestErrUnexpectedEOMMessage(t *testing.T) {
	err := ErrUnexpectedEOM{ParamID: 9}
	assert.Contains(t, err.Error(), "param 9")
}

func TestErrPushBeforePullMessage(t *testing.T) {
	err := ErrPushBeforePull{ParamID: 3}
	assert.Contains(t, err.Error(), "param 3")
	assert.Contains(t, err.Error(), "pull-before-push")
}
