package modelload_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/latticeflow/psflow/modelload"
	"github.com/latticeflow/psflow/ps"
)

func drain[P any](t *testing.T, source ps.ModelSource[P]) map[ps.ParamId]P {
	t.Helper()
	out := make(map[ps.ParamId]P)
	for _, ch := range source {
		for rec := range ch {
			out[rec.ParamID] = rec.Value
		}
	}
	return out
}

func TestSliceModelSourceRebalancesAndClosesEveryChannel(t *testing.T) {
	records := []ps.ModelRecord[float64]{
		{ParamID: 0, Value: 1}, {ParamID: 1, Value: 2}, {ParamID: 2, Value: 3}, {ParamID: 3, Value: 4},
	}
	source := modelload.SliceModelSource[float64](2, records)
	assert.Len(t, source, 2)

	got := drain(t, source)
	assert.Equal(t, 4, len(got))
	assert.Equal(t, float64(1), got[0])
	assert.Equal(t, float64(4), got[3])
}

func TestRecordIOModelSourceRoundTrip(t *testing.T) {
	f, err := os.CreateTemp("", "psflow-model-*.recordio")
	assert.NoError(t, err)
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	records := []ps.ModelRecord[float64]{
		{ParamID: 10, Value: 1.5}, {ParamID: 11, Value: 2.5}, {ParamID: 12, Value: 3.5},
	}
	assert.NoError(t, modelload.WriteRecordIOModel(path, records))

	source, err := modelload.RecordIOModelSource[float64](2, path)
	assert.NoError(t, err)

	got := drain(t, source)
	assert.Equal(t, 3, len(got))
	assert.Equal(t, 1.5, got[10])
	assert.Equal(t, 3.5, got[12])
}

func TestDoubleModelSourceTagsBothSides(t *testing.T) {
	serverSide := modelload.SliceModelSource[float64](1, []ps.ModelRecord[float64]{{ParamID: 0, Value: 1}})
	workerSide := modelload.SliceModelSource[float64](1, []ps.ModelRecord[float64]{{ParamID: 0, Value: 2}})

	merged := modelload.DoubleModelSource[float64](serverSide, workerSide)
	assert.Len(t, merged, 1)

	var sawServer, sawWorker bool
	for rec := range merged[0] {
		if rec.IsWorkerCopy {
			sawWorker = true
			assert.Equal(t, float64(2), rec.Record.Value)
		} else {
			sawServer = true
			assert.Equal(t, float64(1), rec.Record.Value)
		}
	}
	assert.True(t, sawServer)
	assert.True(t, sawWorker)
}
