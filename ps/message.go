package ps

// Kind tags the payload carried by a WorkerToServer message. A single
// enum per direction, rather than a nested Either, keeps dispatch a
// one-way switch instead of a chain of type assertions.
type Kind int

const (
	// KindPull requests the current value of ParamID.
	KindPull Kind = iota
	// KindPush carries a delta to fold into ParamID's stored value.
	KindPush
	// kindEOM marks a worker partition's end-of-model fan-out during
	// bootstrap (spec §4.5). It never reaches a user-supplied
	// PSReceiver: the server partition runtime intercepts it before
	// the codec layer sees the message.
	kindEOM
)

func (k Kind) String() string {
	switch k {
	case KindPull:
		return "pull"
	case KindPush:
		return "push"
	case kindEOM:
		return "eom"
	default:
		return "unknown"
	}
}

// WorkerToServer is the wire message a WorkerSender produces and a
// PSReceiver consumes. Exactly one of Delta (when Kind is KindPush) or
// nothing else is meaningful for KindPull; Raw is populated instead of
// Kind and Delta by codecs that serialize the message (codec/snappy.go)
// and is left nil by the default in-process codec and by the net/rpc
// distributed transport, which ships the typed fields directly.
type WorkerToServer[PushP any] struct {
	WorkerPartition PartitionIndex
	Kind            Kind
	ParamID         ParamId
	Delta           PushP
	Raw             []byte
}

// ServerToWorker is the wire message a PSSender produces and a
// WorkerReceiver consumes. EOM marks a synthetic keepalive pull answer
// emitted during double-sided model load (spec §4.5); it carries no
// parameter value a worker should act on. The worker runtime drops EOM
// messages before they reach the WorkerReceiver, and logs
// ErrUnexpectedEOM if a receiver still reports eom for an answer (error
// taxonomy item 3), so WorkerLogic.OnPullRecv never sees one.
type ServerToWorker[PullP any] struct {
	WorkerPartition PartitionIndex
	ParamID         ParamId
	Value           PullP
	EOM             bool
	Raw             []byte
}

// Either is a tagged union of a worker-tier output and a server-tier
// output, the shape of the final composed pipeline's result stream
// (spec §6, "a stream of Left(worker_output) | Right(server_output)").
type Either[L, R any] struct {
	IsLeft bool
	Left   L
	Right  R
}

// LeftOf wraps a worker output as the Left branch of the result stream.
func LeftOf[L, R any](v L) Either[L, R] {
	return Either[L, R]{IsLeft: true, Left: v}
}

// RightOf wraps a server output as the Right branch of the result stream.
func RightOf[L, R any](v R) Either[L, R] {
	return Either[L, R]{IsLeft: false, Right: v}
}

// ModelRecord is one entry of the single-side bootstrap model stream: a
// parameter id and the value a server partition should push into its
// store before any pull is answered (spec §4.5).
type ModelRecord[PullP any] struct {
	ParamID ParamId
	Value   PullP
}

// DoubleModelRecord is one entry of the double-sided bootstrap model
// stream: a tagged union of a server-side copy (forwarded as a push) and
// a worker-side copy (applied directly via ModelUpdater.UpdateModel).
type DoubleModelRecord[PullP any] struct {
	IsWorkerCopy bool
	Record       ModelRecord[PullP]
}
