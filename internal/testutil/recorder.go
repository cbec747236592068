package testutil

import (
	"context"

	"github.com/roach88/spy/internal/state"
)

// Call is one recorded State invocation.
type Call struct {
	Method string
	Args   []any
}

// RecordingState is a State that records every call and answers with a
// configurable verdict. It holds no graph; use it to check what the engine
// asks for, or to simulate a misbehaving state.
type RecordingState struct {
	Calls []Call

	// Verdict decides each call's result. Nil means every call applies.
	Verdict func(c Call) (bool, error)
}

var _ state.State = (*RecordingState)(nil)

// Methods returns the method names called, in order.
func (r *RecordingState) Methods() []string {
	names := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		names[i] = c.Method
	}
	return names
}

func (r *RecordingState) record(method string, args ...any) (bool, error) {
	c := Call{Method: method, Args: args}
	r.Calls = append(r.Calls, c)
	if r.Verdict == nil {
		return true, nil
	}
	return r.Verdict(c)
}

func (r *RecordingState) AddUtility(_ context.Context, pid uint64) (bool, error) {
	return r.record("AddUtility", pid)
}

func (r *RecordingState) AddProcessor(_ context.Context, pid, util, kind uint64) (bool, error) {
	return r.record("AddProcessor", pid, util, kind)
}

func (r *RecordingState) AddMemory(_ context.Context, mid, capacity uint64) (bool, error) {
	return r.record("AddMemory", mid, capacity)
}

func (r *RecordingState) SetProcessorMemory(_ context.Context, pid, mid, bandwidth, latency uint64) (bool, error) {
	return r.record("SetProcessorMemory", pid, mid, bandwidth, latency)
}

func (r *RecordingState) SetMemoryMemory(_ context.Context, mone, mtwo, bandwidth, latency uint64) (bool, error) {
	return r.record("SetMemoryMemory", mone, mtwo, bandwidth, latency)
}

func (r *RecordingState) AddIndexSpace(_ context.Context, uid uint64) (bool, error) {
	return r.record("AddIndexSpace", uid)
}

func (r *RecordingState) AddIndexPartition(_ context.Context, pid, uid uint64, disjoint bool, color uint64) (bool, error) {
	return r.record("AddIndexPartition", pid, uid, disjoint, color)
}

func (r *RecordingState) AddIndexSubspace(_ context.Context, pid, uid, color uint64) (bool, error) {
	return r.record("AddIndexSubspace", pid, uid, color)
}

func (r *RecordingState) AddFieldSpace(_ context.Context, uid uint64) (bool, error) {
	return r.record("AddFieldSpace", uid)
}

func (r *RecordingState) AddField(_ context.Context, uid, fid uint64) (bool, error) {
	return r.record("AddField", uid, fid)
}

func (r *RecordingState) AddRegion(_ context.Context, iid, fid, tid uint64) (bool, error) {
	return r.record("AddRegion", iid, fid, tid)
}

func (r *RecordingState) AddTopTask(_ context.Context, tid, uid uint64, name string) (bool, error) {
	return r.record("AddTopTask", tid, uid, name)
}

func (r *RecordingState) AddIndividualTask(_ context.Context, parent, tid, uid uint64, name string) (bool, error) {
	return r.record("AddIndividualTask", parent, tid, uid, name)
}

func (r *RecordingState) AddIndexTask(_ context.Context, parent, tid, uid uint64, name string) (bool, error) {
	return r.record("AddIndexTask", parent, tid, uid, name)
}

func (r *RecordingState) AddMappingOp(_ context.Context, parent, uid uint64) (bool, error) {
	return r.record("AddMappingOp", parent, uid)
}

func (r *RecordingState) AddCloseOp(_ context.Context, parent, uid uint64) (bool, error) {
	return r.record("AddCloseOp", parent, uid)
}

func (r *RecordingState) AddCopyOp(_ context.Context, parent, uid uint64) (bool, error) {
	return r.record("AddCopyOp", parent, uid)
}

func (r *RecordingState) AddDeletionOp(_ context.Context, parent, uid uint64) (bool, error) {
	return r.record("AddDeletionOp", parent, uid)
}

func (r *RecordingState) AddIndexSlice(_ context.Context, index, slice uint64) (bool, error) {
	return r.record("AddIndexSlice", index, slice)
}

func (r *RecordingState) AddSliceSlice(_ context.Context, slice1, slice2 uint64) (bool, error) {
	return r.record("AddSliceSlice", slice1, slice2)
}

func (r *RecordingState) AddSlicePoint(_ context.Context, slice, point, dim, val1, val2, val3 uint64) (bool, error) {
	return r.record("AddSlicePoint", slice, point, dim, val1, val2, val3)
}

func (r *RecordingState) AddPointPoint(_ context.Context, point1, point2 uint64) (bool, error) {
	return r.record("AddPointPoint", point1, point2)
}

func (r *RecordingState) AddRequirement(_ context.Context, req state.Requirement) (bool, error) {
	return r.record("AddRequirement", req)
}

func (r *RecordingState) AddRequirementField(_ context.Context, uid, index, fid uint64) (bool, error) {
	return r.record("AddRequirementField", uid, index, fid)
}

func (r *RecordingState) AddMappingDependence(_ context.Context, parent, prevID, pidx, nextID, nidx, dtype uint64) (bool, error) {
	return r.record("AddMappingDependence", parent, prevID, pidx, nextID, nidx, dtype)
}

func (r *RecordingState) AddInstanceRequirement(_ context.Context, uid, idx, index uint64) (bool, error) {
	return r.record("AddInstanceRequirement", uid, idx, index)
}

func (r *RecordingState) AddEventDependence(_ context.Context, idone, genone, idtwo, gentwo uint64) (bool, error) {
	return r.record("AddEventDependence", idone, genone, idtwo, gentwo)
}

func (r *RecordingState) AddImplicitDependence(_ context.Context, idone, genone, idtwo, gentwo uint64) (bool, error) {
	return r.record("AddImplicitDependence", idone, genone, idtwo, gentwo)
}

func (r *RecordingState) AddOpEvents(_ context.Context, uid, startID, startGen, termID, termGen uint64) (bool, error) {
	return r.record("AddOpEvents", uid, startID, startGen, termID, termGen)
}

func (r *RecordingState) AddCopyEvents(_ context.Context, ev state.CopyEvent) (bool, error) {
	return r.record("AddCopyEvents", ev)
}

func (r *RecordingState) AddPhysicalInstance(_ context.Context, inst state.Instance) (bool, error) {
	return r.record("AddPhysicalInstance", inst)
}

func (r *RecordingState) AddReductionInstance(_ context.Context, inst state.Instance, fold bool, indirect uint64) (bool, error) {
	return r.record("AddReductionInstance", inst, fold, indirect)
}

func (r *RecordingState) AddOpUser(_ context.Context, uid, idx, iid uint64) (bool, error) {
	return r.record("AddOpUser", uid, idx, iid)
}
