package ps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "pull", KindPull.String())
	assert.Equal(t, "push", KindPush.String())
	assert.Equal(t, "eom", kindEOM.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestEitherLeftRight(t *testing.T) {
	l := LeftOf[int, string](7)
	assert.True(t, l.IsLeft)
	assert.Equal(t, 7, l.Left)

	r := RightOf[int, string]("done")
	assert.False(t, r.IsLeft)
	assert.Equal(t, "done", r.Right)
}
