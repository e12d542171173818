// Package modelload builds the bootstrap model streams
// ps.RunLoadingEngine consumes: a ps.ModelSource or ps.DoubleModelSource
// per worker partition, rebalanced the way the fabric's bootstrap
// barrier (spec §4.5) requires.
package modelload

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/latticeflow/psflow/ps"
	"github.com/latticeflow/psflow/recordio"
)

// wireRecord is the gob-encoded payload stored in each recordio record:
// a parameter id and its value, mirroring master/service.go's chunked
// dataset records except the payload here is a parameter, not a
// training sample.
type wireRecord[P any] struct {
	ParamID ps.ParamId
	Value   P
}

// RecordIOModelSource reads (ParamId, value) records out of one or more
// recordio-indexed files (globs accepted, per recordio.NewScanner) and
// rebalances them round-robin across numWorkers channels, the
// per-worker-partition shape ps.ModelSource requires. Each returned
// channel is closed once the whole file set has been scanned.
func RecordIOModelSource[P any](numWorkers int, paths ...string) (ps.ModelSource[P], error) {
	scanner, err := recordio.NewScanner(paths...)
	if err != nil {
		return nil, fmt.Errorf("modelload: %w", err)
	}

	chans := make([]chan ps.ModelRecord[P], numWorkers)
	out := make(ps.ModelSource[P], numWorkers)
	for i := range chans {
		chans[i] = make(chan ps.ModelRecord[P], 64)
		out[i] = chans[i]
	}

	go func() {
		defer scanner.Close()
		defer func() {
			for _, c := range chans {
				close(c)
			}
		}()

		i := 0
		for scanner.Scan() {
			var rec wireRecord[P]
			if err := gob.NewDecoder(bytes.NewReader(scanner.Record())).Decode(&rec); err != nil {
				log.WithError(err).Error("modelload: decode recordio record failed, skipping")
				continue
			}
			chans[i%numWorkers] <- ps.ModelRecord[P]{ParamID: rec.ParamID, Value: rec.Value}
			i++
		}
		if err := scanner.Err(); err != nil {
			log.WithError(err).Error("modelload: recordio scan ended with error")
		}
	}()

	return out, nil
}

// WriteRecordIOModel writes records as a recordio file at path (one
// chunk per 32 MiB of encoded records, snappy-compressed), the inverse
// of RecordIOModelSource; used by tests and by
// offline snapshot tooling to produce a loadable model file.
func WriteRecordIOModel[P any](path string, records []ps.ModelRecord[P]) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("modelload: %w", err)
	}
	defer f.Close()

	w := recordio.NewWriter(f, -1, -1)
	for _, rec := range records {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(wireRecord[P]{ParamID: rec.ParamID, Value: rec.Value}); err != nil {
			return fmt.Errorf("modelload: encode record: %w", err)
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("modelload: write record: %w", err)
		}
	}
	return w.Close()
}

// SliceModelSource rebalances an in-memory slice of records round-robin
// across numWorkers channels; the vehicle for test- and demo-scale
// model loads (scenarios S5/S6 of spec.md) that don't warrant a file.
func SliceModelSource[P any](numWorkers int, records []ps.ModelRecord[P]) ps.ModelSource[P] {
	chans := make([]chan ps.ModelRecord[P], numWorkers)
	out := make(ps.ModelSource[P], numWorkers)
	for i := range chans {
		chans[i] = make(chan ps.ModelRecord[P], len(records)/numWorkers+1)
		out[i] = chans[i]
	}
	for i, rec := range records {
		chans[i%numWorkers] <- rec
	}
	for _, c := range chans {
		close(c)
	}
	return out
}

// DoubleModelSource composes a server-side source (forwarded as pushes)
// and a worker-side source (applied via ModelUpdater) into the tagged
// Left|Right stream ps.RunLoadingEngine's double-sided load requires
// (spec §4.5). Per worker partition it forwards records from both
// sides in whatever order they become ready (a select over the two
// channels); the sides are not strictly alternated. The merged channel
// closes once both sides are closed.
func DoubleModelSource[P any](serverSide, workerSide ps.ModelSource[P]) ps.DoubleModelSource[P] {
	n := len(serverSide)
	out := make(ps.DoubleModelSource[P], n)
	for i := 0; i < n; i++ {
		merged := make(chan ps.DoubleModelRecord[P], 64)
		out[i] = merged
		go mergeDoubleSource(merged, serverSide[i], workerSide[i])
	}
	return out
}

func mergeDoubleSource[P any](merged chan<- ps.DoubleModelRecord[P], serverSide, workerSide <-chan ps.ModelRecord[P]) {
	defer close(merged)
	for serverSide != nil || workerSide != nil {
		select {
		case rec, ok := <-serverSide:
			if !ok {
				serverSide = nil
				continue
			}
			merged <- ps.DoubleModelRecord[P]{IsWorkerCopy: false, Record: rec}
		case rec, ok := <-workerSide:
			if !ok {
				workerSide = nil
				continue
			}
			merged <- ps.DoubleModelRecord[P]{IsWorkerCopy: true, Record: rec}
		}
	}
}
