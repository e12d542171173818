// Package ps implements the coordination fabric of a distributed
// parameter-server runtime: message framing and routing between worker
// and server partitions, the iterative worker/server dataflow loop, and
// the model-load bootstrap barrier.
package ps

// ParamId identifies a logical parameter. It is hashed to locate the
// server partition that owns it; the mapping never changes within a job.
type ParamId int32

// PartitionIndex identifies one parallel instance of the worker or
// server operator. Values are in [0, W) for workers, [0, S) for servers.
type PartitionIndex int32
