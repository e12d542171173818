// Package partition implements the two routing functions the fabric
// uses to move messages between worker and server tiers, satisfying
// the ps.WorkerToServerPartitioner / ps.ServerToWorkerPartitioner
// interfaces.
package partition

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/latticeflow/psflow/ps"
)

// FNV1a hashes a ParamId's big-endian encoding with 32-bit FNV-1a and
// reduces modulo the server count. It never changes a parameter's home
// partition within a job (spec invariant 1), grounding the same scheme
// the teacher's pserver client uses to shard by parameter name
// (hash/fnv + mod pserver count, see pserver/client.strHash).
type FNV1a struct{}

func (FNV1a) Partition(id ps.ParamId, numServers int) ps.PartitionIndex {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(id))
	h := fnv.New32a()
	_, _ = h.Write(buf[:])
	return ps.PartitionIndex(h.Sum32() % uint32(numServers))
}

// Identity is the only correct ServerToWorkerPartitioner: the embedded
// worker partition tag on a ServerToWorker message IS the destination.
type Identity struct{}

func (Identity) Partition(workerPartition ps.PartitionIndex, numWorkers int) (ps.PartitionIndex, error) {
	if int(workerPartition) < 0 || int(workerPartition) >= numWorkers {
		return 0, ps.ErrRoutingInvariant{WorkerPartition: workerPartition, NumWorkers: numWorkers}
	}
	return workerPartition, nil
}
