package ps

// WorkerLogic is user-supplied worker behavior. PullP is the type
// answers arrive as, PushP is the type pushed deltas are sent as; the
// symmetric variant spec §4.1 describes is the instantiation
// PullP == PushP == P.
//
// Handlers are invoked sequentially for one worker partition instance;
// the fabric never calls two handlers of the same WorkerLogic value
// concurrently (spec §5). The *ParameterServerClient passed to OnRecv
// and OnPullRecv is only valid for the duration of that call and must
// not be retained past it.
type WorkerLogic[PullP, PushP, In, Out any] interface {
	Open(cfg Config, ctx RuntimeContext) error
	OnRecv(record In, client *ParameterServerClient[PullP, PushP, Out]) error
	OnPullRecv(id ParamId, value PullP, client *ParameterServerClient[PullP, PushP, Out]) error
	Close() error
}

// ModelUpdater is implemented by a WorkerLogic that participates in
// double-sided model load (spec §4.5): worker-copy model records are
// applied directly via UpdateModel rather than forwarded as a push.
// A WorkerLogic used only with single-side load, or not used with model
// load at all, need not implement it.
type ModelUpdater[PullP any] interface {
	UpdateModel(id ParamId, value PullP) error
}

// ParameterServerLogic is user-supplied parameter-store behavior.
type ParameterServerLogic[PullP, PushP, Out any] interface {
	Open(cfg Config, ctx RuntimeContext) error
	OnPullRecv(id ParamId, workerPartition PartitionIndex, srv *ParameterServer[PullP, Out]) error
	OnPushRecv(id ParamId, delta PushP, srv *ParameterServer[PullP, Out]) error
	Close(srv *ParameterServer[PullP, Out]) error
}
