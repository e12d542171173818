package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/latticeflow/psflow/ps"
)

func TestFNV1aStableAcrossCalls(t *testing.T) {
	f := FNV1a{}
	id := ps.ParamId(42)
	first := f.Partition(id, 8)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, f.Partition(id, 8))
	}
}

func TestFNV1aInRange(t *testing.T) {
	f := FNV1a{}
	for id := ps.ParamId(0); id < 500; id++ {
		p := f.Partition(id, 5)
		assert.GreaterOrEqual(t, int(p), 0)
		assert.Less(t, int(p), 5)
	}
}

func TestIdentityAccepts(t *testing.T) {
	ident := Identity{}
	p, err := ident.Partition(ps.PartitionIndex(2), 4)
	assert.NoError(t, err)
	assert.Equal(t, ps.PartitionIndex(2), p)
}

func TestIdentityRejectsOutOfRange(t *testing.T) {
	ident := Identity{}
	_, err := ident.Partition(ps.PartitionIndex(4), 4)
	assert.Error(t, err)
	assert.IsType(t, ps.ErrRoutingInvariant{}, err)

	_, err = ident.Partition(ps.PartitionIndex(-1), 4)
	assert.Error(t, err)
}
