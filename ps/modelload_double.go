package ps

// ModelSource is a single-side bootstrap model stream, already
// rebalanced across W worker partitions the way spec §4.5 requires: one
// channel per worker partition, closed when that partition's share of
// the model has been fully delivered.
type ModelSource[P any] []<-chan ModelRecord[P]

// DoubleModelSource is the double-sided counterpart: each worker
// partition's channel interleaves server-side and worker-side copies,
// tagged via DoubleModelRecord.IsWorkerCopy.
type DoubleModelSource[P any] []<-chan DoubleModelRecord[P]
