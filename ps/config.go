package ps

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// TransportKind names how worker-to-server and server-to-worker
// messages travel. InProcess wires partitions together with Go channels
// in a single process (RunEngine, RunLoadingEngine); Distributed uses
// the net/rpc transport with etcd-based discovery, one OS process per
// partition (RunDistributedWorker, RunDistributedServer). The transport
// is chosen by which of those functions is called; none of them reads
// Config.Transport.
type TransportKind int

const (
	TransportInProcess TransportKind = iota
	TransportDistributed
)

// Config carries the job-wide settings spec §6 names as "Configuration
// parameters", plus a Transport label (see TransportKind).
type Config struct {
	WorkerParallelism int
	ServerParallelism int

	// IterationWaitTime is the maximum idle interval permitted inside
	// the worker/server feedback loop before the job terminates
	// normally. Zero means "never terminate".
	IterationWaitTime time.Duration

	Transport TransportKind

	// Logger is the base logger every partition runtime derives its
	// per-partition entry from. Defaults to logrus's standard logger
	// if nil.
	Logger *log.Logger
}

// Validate checks the configuration errors spec §7 classifies as
// "configuration errors... fail the job at setup".
func (c Config) Validate() error {
	if c.WorkerParallelism <= 0 {
		return fmt.Errorf("ps: worker parallelism must be > 0, got %d", c.WorkerParallelism)
	}
	if c.ServerParallelism <= 0 {
		return fmt.Errorf("ps: server parallelism must be > 0, got %d", c.ServerParallelism)
	}
	if c.IterationWaitTime < 0 {
		return fmt.Errorf("ps: iteration wait time must be >= 0, got %s", c.IterationWaitTime)
	}
	return nil
}

func (c Config) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.StandardLogger()
}

// RuntimeContext is what an operator's Open hook receives in place of
// the host engine's runtime context: the partition's own index and a
// logger already tagged with tier and partition for every message it
// emits.
type RuntimeContext struct {
	PartitionIndex PartitionIndex
	Logger         *log.Entry
}
