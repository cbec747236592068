package state

import "context"

// State is the mutation interface the engine drives.
//
// There is one method per record kind. Each returns applied=true when the
// mutation committed, and applied=false when it references an entity that
// does not exist yet; in that case the call must have no effect so the
// engine can retry it later. A non-nil error is an infrastructure failure
// and aborts the run.
//
// Methods for unconditional kinds (utility, processor, memory, index space,
// field space, top task, event edges) must always return true on success.
//
// Implementations are driven from a single goroutine and need no locking.
type State interface {
	// Machine shape
	AddUtility(ctx context.Context, pid uint64) (bool, error)
	AddProcessor(ctx context.Context, pid, util, kind uint64) (bool, error)
	AddMemory(ctx context.Context, mid, capacity uint64) (bool, error)
	SetProcessorMemory(ctx context.Context, pid, mid, bandwidth, latency uint64) (bool, error)
	SetMemoryMemory(ctx context.Context, mone, mtwo, bandwidth, latency uint64) (bool, error)

	// Region tree shape
	AddIndexSpace(ctx context.Context, uid uint64) (bool, error)
	AddIndexPartition(ctx context.Context, pid, uid uint64, disjoint bool, color uint64) (bool, error)
	AddIndexSubspace(ctx context.Context, pid, uid, color uint64) (bool, error)
	AddFieldSpace(ctx context.Context, uid uint64) (bool, error)
	AddField(ctx context.Context, uid, fid uint64) (bool, error)
	AddRegion(ctx context.Context, iid, fid, tid uint64) (bool, error)

	// Operations. parent is the enclosing task's operation id.
	AddTopTask(ctx context.Context, tid, uid uint64, name string) (bool, error)
	AddIndividualTask(ctx context.Context, parent, tid, uid uint64, name string) (bool, error)
	AddIndexTask(ctx context.Context, parent, tid, uid uint64, name string) (bool, error)
	AddMappingOp(ctx context.Context, parent, uid uint64) (bool, error)
	AddCloseOp(ctx context.Context, parent, uid uint64) (bool, error)
	AddCopyOp(ctx context.Context, parent, uid uint64) (bool, error)
	AddDeletionOp(ctx context.Context, parent, uid uint64) (bool, error)
	AddIndexSlice(ctx context.Context, index, slice uint64) (bool, error)
	AddSliceSlice(ctx context.Context, slice1, slice2 uint64) (bool, error)
	AddSlicePoint(ctx context.Context, slice, point, dim, val1, val2, val3 uint64) (bool, error)
	AddPointPoint(ctx context.Context, point1, point2 uint64) (bool, error)

	// Logical dependence analysis
	AddRequirement(ctx context.Context, req Requirement) (bool, error)
	AddRequirementField(ctx context.Context, uid, index, fid uint64) (bool, error)
	AddMappingDependence(ctx context.Context, parent, prevID, pidx, nextID, nidx, dtype uint64) (bool, error)

	// Physical dependence analysis
	AddInstanceRequirement(ctx context.Context, uid, idx, index uint64) (bool, error)

	// Events
	AddEventDependence(ctx context.Context, idone, genone, idtwo, gentwo uint64) (bool, error)
	AddImplicitDependence(ctx context.Context, idone, genone, idtwo, gentwo uint64) (bool, error)
	AddOpEvents(ctx context.Context, uid, startID, startGen, termID, termGen uint64) (bool, error)
	AddCopyEvents(ctx context.Context, ev CopyEvent) (bool, error)

	// Physical instances
	AddPhysicalInstance(ctx context.Context, inst Instance) (bool, error)
	AddReductionInstance(ctx context.Context, inst Instance, fold bool, indirect uint64) (bool, error)
	AddOpUser(ctx context.Context, uid, idx, iid uint64) (bool, error)
}

// Requirement is a logical region requirement of an operation.
// When IsRegion is set, IndexSpace names an index space; otherwise it names
// an index partition.
type Requirement struct {
	UID        uint64
	Index      uint64
	IsRegion   bool
	IndexSpace uint64
	FieldSpace uint64
	TreeID     uint64
	Privilege  uint64
	Coherence  uint64
	Redop      uint64
}

// CopyEvent is a copy between two physical instances, bracketed by a start
// and a termination event.
type CopyEvent struct {
	Src      uint64
	Dst      uint64
	Index    uint64
	Field    uint64
	Tree     uint64
	StartID  uint64
	StartGen uint64
	TermID   uint64
	TermGen  uint64
	Redop    uint64
	Mask     []uint64
}

// Instance is a physical (or reduction) instance placed in a memory.
type Instance struct {
	IID   uint64
	MID   uint64
	Index uint64
	Field uint64
	Tree  uint64
}
