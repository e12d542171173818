package ps

// ParamOutput is the server output record the default PS logic emits on
// Close: one per parameter ever observed, holding its final value
// (spec invariant/testable property P7).
type ParamOutput[P any] struct {
	ID    ParamId
	Value P
}

// DefaultLogic is the default symmetric ParameterServerLogic: a
// ParamId -> P map with lazy initialization and a user-supplied fold.
// On first pull for an id it calls Init(id) and stores the result; on
// push, if an entry exists it stores Update(old, delta), otherwise it
// stores delta itself as the initial value (spec §3 invariant 3,
// §4.2). On Close it emits every (id, value) pair as a ParamOutput.
type DefaultLogic[P any] struct {
	Init   func(ParamId) P
	Update func(old, delta P) P

	state map[ParamId]P
}

// NewDefaultLogic constructs the default PS logic from the user's
// lazy-init and fold functions.
func NewDefaultLogic[P any](initFn func(ParamId) P, updateFn func(old, delta P) P) *DefaultLogic[P] {
	return &DefaultLogic[P]{Init: initFn, Update: updateFn}
}

func (d *DefaultLogic[P]) Open(cfg Config, ctx RuntimeContext) error {
	d.state = make(map[ParamId]P)
	return nil
}

func (d *DefaultLogic[P]) OnPullRecv(id ParamId, workerPartition PartitionIndex, srv *ParameterServer[P, ParamOutput[P]]) error {
	v, ok := d.state[id]
	if !ok {
		v = d.Init(id)
		d.state[id] = v
	}
	srv.AnswerPull(id, v, workerPartition)
	return nil
}

func (d *DefaultLogic[P]) OnPushRecv(id ParamId, delta P, srv *ParameterServer[P, ParamOutput[P]]) error {
	old, ok := d.state[id]
	if !ok {
		d.state[id] = delta
		return nil
	}
	d.state[id] = d.Update(old, delta)
	return nil
}

func (d *DefaultLogic[P]) Close(srv *ParameterServer[P, ParamOutput[P]]) error {
	for id, v := range d.state {
		srv.Output(ParamOutput[P]{ID: id, Value: v})
	}
	return nil
}

// DefaultLooseLogic is the asymmetric counterpart of DefaultLogic, used
// when PullP != PushP. Spec §9's open question about a push arriving
// before any pull is resolved here per the spec's stated primary
// contract: reject it rather than attempt a PushP -> PullP coercion
// that does not generally exist (see DESIGN.md, Open Question 1).
type DefaultLooseLogic[PullP, PushP any] struct {
	Init   func(ParamId) PullP
	Update func(old PullP, delta PushP) PullP

	state map[ParamId]PullP
}

// NewDefaultLooseLogic constructs the asymmetric default PS logic.
func NewDefaultLooseLogic[PullP, PushP any](initFn func(ParamId) PullP, updateFn func(old PullP, delta PushP) PullP) *DefaultLooseLogic[PullP, PushP] {
	return &DefaultLooseLogic[PullP, PushP]{Init: initFn, Update: updateFn}
}

func (d *DefaultLooseLogic[PullP, PushP]) Open(cfg Config, ctx RuntimeContext) error {
	d.state = make(map[ParamId]PullP)
	return nil
}

func (d *DefaultLooseLogic[PullP, PushP]) OnPullRecv(id ParamId, workerPartition PartitionIndex, srv *ParameterServer[PullP, ParamOutput[PullP]]) error {
	v, ok := d.state[id]
	if !ok {
		v = d.Init(id)
		d.state[id] = v
	}
	srv.AnswerPull(id, v, workerPartition)
	return nil
}

func (d *DefaultLooseLogic[PullP, PushP]) OnPushRecv(id ParamId, delta PushP, srv *ParameterServer[PullP, ParamOutput[PullP]]) error {
	old, ok := d.state[id]
	if !ok {
		return ErrPushBeforePull{ParamID: id}
	}
	d.state[id] = d.Update(old, delta)
	return nil
}

func (d *DefaultLooseLogic[PullP, PushP]) Close(srv *ParameterServer[PullP, ParamOutput[PullP]]) error {
	for id, v := range d.state {
		srv.Output(ParamOutput[PullP]{ID: id, Value: v})
	}
	return nil
}
