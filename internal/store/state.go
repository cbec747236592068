package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/spy/internal/ir"
	"github.com/roach88/spy/internal/state"
)

// RunState is the persistent state.State of a single run.
//
// Each mutation runs in its own transaction: the required references are
// checked first, and if any is missing the call returns false without
// writing anything. Otherwise the declared entities and the fact itself are
// inserted with ON CONFLICT DO NOTHING, so reapplying a mutation is harmless.
type RunState struct {
	store *Store
	runID string
	seq   int64
}

var _ state.State = (*RunState)(nil)

// RunID returns the run this state writes to.
func (r *RunState) RunID() string {
	return r.runID
}

// Has reports whether ref has been declared in this run. A query failure
// reports false.
func (r *RunState) Has(ref state.Ref) bool {
	ok, err := exists(context.Background(), r.store.db, r.runID, ref)
	return err == nil && ok
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exists(ctx context.Context, q querier, runID string, ref state.Ref) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM entities
		WHERE run_id = ? AND entity = ? AND key = ?
	`, runID, string(ref.Entity), ref.ID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", ref, err)
	}
	return n > 0, nil
}

func (r *RunState) apply(ctx context.Context, kind ir.Kind, fields ir.Fields) (bool, error) {
	rec := ir.Record{Kind: kind, Fields: fields}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("apply %s: begin transaction: %w", kind, err)
	}
	defer tx.Rollback()

	for _, ref := range state.Requires(rec) {
		ok, err := exists(ctx, tx, r.runID, ref)
		if err != nil {
			return false, fmt.Errorf("apply %s: %w", kind, err)
		}
		if !ok {
			return false, nil
		}
	}

	for _, ref := range state.Declares(rec) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entities (run_id, entity, key)
			VALUES (?, ?, ?)
			ON CONFLICT(run_id, entity, key) DO NOTHING
		`, r.runID, string(ref.Entity), ref.ID)
		if err != nil {
			return false, fmt.Errorf("apply %s: declare %s: %w", kind, ref, err)
		}
	}

	id, err := ir.RecordID(rec)
	if err != nil {
		return false, fmt.Errorf("apply %s: %w", kind, err)
	}
	fieldsJSON, err := marshalFields(fields)
	if err != nil {
		return false, fmt.Errorf("apply %s: %w", kind, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO facts (run_id, id, seq, kind, fields)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`, r.runID, id, r.seq+1, kind.String(), fieldsJSON)
	if err != nil {
		return false, fmt.Errorf("apply %s: write fact: %w", kind, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("apply %s: commit: %w", kind, err)
	}
	r.seq++
	return true, nil
}

func (r *RunState) AddUtility(ctx context.Context, pid uint64) (bool, error) {
	return r.apply(ctx, ir.KindUtility, ir.Fields{"pid": ir.Uint(pid)})
}

func (r *RunState) AddProcessor(ctx context.Context, pid, util, kind uint64) (bool, error) {
	return r.apply(ctx, ir.KindProcessor, ir.Fields{
		"pid": ir.Uint(pid), "util": ir.Uint(util), "kind": ir.Uint(kind),
	})
}

func (r *RunState) AddMemory(ctx context.Context, mid, capacity uint64) (bool, error) {
	return r.apply(ctx, ir.KindMemory, ir.Fields{"mid": ir.Uint(mid), "capacity": ir.Uint(capacity)})
}

func (r *RunState) SetProcessorMemory(ctx context.Context, pid, mid, bandwidth, latency uint64) (bool, error) {
	return r.apply(ctx, ir.KindProcessorMemory, ir.Fields{
		"pid": ir.Uint(pid), "mid": ir.Uint(mid), "band": ir.Uint(bandwidth), "lat": ir.Uint(latency),
	})
}

func (r *RunState) SetMemoryMemory(ctx context.Context, mone, mtwo, bandwidth, latency uint64) (bool, error) {
	return r.apply(ctx, ir.KindMemoryMemory, ir.Fields{
		"mone": ir.Uint(mone), "mtwo": ir.Uint(mtwo), "band": ir.Uint(bandwidth), "lat": ir.Uint(latency),
	})
}

func (r *RunState) AddIndexSpace(ctx context.Context, uid uint64) (bool, error) {
	return r.apply(ctx, ir.KindIndexSpace, ir.Fields{"uid": ir.Uint(uid)})
}

func (r *RunState) AddIndexPartition(ctx context.Context, pid, uid uint64, disjoint bool, color uint64) (bool, error) {
	return r.apply(ctx, ir.KindIndexPartition, ir.Fields{
		"pid": ir.Uint(pid), "uid": ir.Uint(uid), "disjoint": ir.Flag(disjoint), "color": ir.Uint(color),
	})
}

func (r *RunState) AddIndexSubspace(ctx context.Context, pid, uid, color uint64) (bool, error) {
	return r.apply(ctx, ir.KindIndexSubspace, ir.Fields{
		"pid": ir.Uint(pid), "uid": ir.Uint(uid), "color": ir.Uint(color),
	})
}

func (r *RunState) AddFieldSpace(ctx context.Context, uid uint64) (bool, error) {
	return r.apply(ctx, ir.KindFieldSpace, ir.Fields{"uid": ir.Uint(uid)})
}

func (r *RunState) AddField(ctx context.Context, uid, fid uint64) (bool, error) {
	return r.apply(ctx, ir.KindFieldCreation, ir.Fields{"uid": ir.Uint(uid), "fid": ir.Uint(fid)})
}

func (r *RunState) AddRegion(ctx context.Context, iid, fid, tid uint64) (bool, error) {
	return r.apply(ctx, ir.KindRegion, ir.Fields{
		"iid": ir.Uint(iid), "fid": ir.Uint(fid), "tid": ir.Uint(tid),
	})
}

func (r *RunState) AddTopTask(ctx context.Context, tid, uid uint64, name string) (bool, error) {
	return r.apply(ctx, ir.KindTopTask, ir.Fields{
		"tid": ir.Uint(tid), "uid": ir.Uint(uid), "name": ir.Ident(name),
	})
}

func (r *RunState) AddIndividualTask(ctx context.Context, parent, tid, uid uint64, name string) (bool, error) {
	return r.apply(ctx, ir.KindIndividualTask, taskFields(parent, tid, uid, name))
}

func (r *RunState) AddIndexTask(ctx context.Context, parent, tid, uid uint64, name string) (bool, error) {
	return r.apply(ctx, ir.KindIndexTask, taskFields(parent, tid, uid, name))
}

func taskFields(parent, tid, uid uint64, name string) ir.Fields {
	return ir.Fields{
		"ctx": ir.Uint(parent), "tid": ir.Uint(tid), "uid": ir.Uint(uid), "name": ir.Ident(name),
	}
}

func (r *RunState) AddMappingOp(ctx context.Context, parent, uid uint64) (bool, error) {
	return r.apply(ctx, ir.KindMappingOp, opFields(parent, uid))
}

func (r *RunState) AddCloseOp(ctx context.Context, parent, uid uint64) (bool, error) {
	return r.apply(ctx, ir.KindCloseOp, opFields(parent, uid))
}

func (r *RunState) AddCopyOp(ctx context.Context, parent, uid uint64) (bool, error) {
	return r.apply(ctx, ir.KindCopyOp, opFields(parent, uid))
}

func (r *RunState) AddDeletionOp(ctx context.Context, parent, uid uint64) (bool, error) {
	return r.apply(ctx, ir.KindDeletionOp, opFields(parent, uid))
}

func opFields(parent, uid uint64) ir.Fields {
	return ir.Fields{"ctx": ir.Uint(parent), "uid": ir.Uint(uid)}
}

func (r *RunState) AddIndexSlice(ctx context.Context, index, slice uint64) (bool, error) {
	return r.apply(ctx, ir.KindIndexSlice, ir.Fields{"index": ir.Uint(index), "slice": ir.Uint(slice)})
}

func (r *RunState) AddSliceSlice(ctx context.Context, slice1, slice2 uint64) (bool, error) {
	return r.apply(ctx, ir.KindSliceSlice, ir.Fields{"slice1": ir.Uint(slice1), "slice2": ir.Uint(slice2)})
}

func (r *RunState) AddSlicePoint(ctx context.Context, slice, point, dim, val1, val2, val3 uint64) (bool, error) {
	return r.apply(ctx, ir.KindSlicePoint, ir.Fields{
		"slice": ir.Uint(slice), "point": ir.Uint(point), "dim": ir.Uint(dim),
		"val1": ir.Uint(val1), "val2": ir.Uint(val2), "val3": ir.Uint(val3),
	})
}

func (r *RunState) AddPointPoint(ctx context.Context, point1, point2 uint64) (bool, error) {
	return r.apply(ctx, ir.KindPointPoint, ir.Fields{"point1": ir.Uint(point1), "point2": ir.Uint(point2)})
}

func (r *RunState) AddRequirement(ctx context.Context, req state.Requirement) (bool, error) {
	return r.apply(ctx, ir.KindLogicalRequirement, ir.Fields{
		"uid":    ir.Uint(req.UID),
		"index":  ir.Uint(req.Index),
		"is_reg": ir.Flag(req.IsRegion),
		"ispace": ir.Uint(req.IndexSpace),
		"fspace": ir.Uint(req.FieldSpace),
		"tid":    ir.Uint(req.TreeID),
		"priv":   ir.Uint(req.Privilege),
		"coher":  ir.Uint(req.Coherence),
		"redop":  ir.Uint(req.Redop),
	})
}

func (r *RunState) AddRequirementField(ctx context.Context, uid, index, fid uint64) (bool, error) {
	return r.apply(ctx, ir.KindRequirementField, ir.Fields{
		"uid": ir.Uint(uid), "index": ir.Uint(index), "fid": ir.Uint(fid),
	})
}

func (r *RunState) AddMappingDependence(ctx context.Context, parent, prevID, pidx, nextID, nidx, dtype uint64) (bool, error) {
	return r.apply(ctx, ir.KindMappingDependence, ir.Fields{
		"ctx":     ir.Uint(parent),
		"prev_id": ir.Uint(prevID),
		"pidx":    ir.Uint(pidx),
		"next_id": ir.Uint(nextID),
		"nidx":    ir.Uint(nidx),
		"dtype":   ir.Uint(dtype),
	})
}

func (r *RunState) AddInstanceRequirement(ctx context.Context, uid, idx, index uint64) (bool, error) {
	return r.apply(ctx, ir.KindTaskInstanceRequirement, ir.Fields{
		"uid": ir.Uint(uid), "idx": ir.Uint(idx), "index": ir.Uint(index),
	})
}

func (r *RunState) AddEventDependence(ctx context.Context, idone, genone, idtwo, gentwo uint64) (bool, error) {
	return r.apply(ctx, ir.KindEventEvent, eventFields(idone, genone, idtwo, gentwo))
}

func (r *RunState) AddImplicitDependence(ctx context.Context, idone, genone, idtwo, gentwo uint64) (bool, error) {
	return r.apply(ctx, ir.KindImplicitEvent, eventFields(idone, genone, idtwo, gentwo))
}

func eventFields(idone, genone, idtwo, gentwo uint64) ir.Fields {
	return ir.Fields{
		"idone": ir.Uint(idone), "genone": ir.Uint(genone),
		"idtwo": ir.Uint(idtwo), "gentwo": ir.Uint(gentwo),
	}
}

func (r *RunState) AddOpEvents(ctx context.Context, uid, startID, startGen, termID, termGen uint64) (bool, error) {
	return r.apply(ctx, ir.KindOpEvents, ir.Fields{
		"uid":      ir.Uint(uid),
		"startid":  ir.Uint(startID),
		"startgen": ir.Uint(startGen),
		"termid":   ir.Uint(termID),
		"termgen":  ir.Uint(termGen),
	})
}

func (r *RunState) AddCopyEvents(ctx context.Context, ev state.CopyEvent) (bool, error) {
	mask := ir.Mask(ev.Mask)
	if mask == nil {
		mask = ir.Mask{}
	}
	return r.apply(ctx, ir.KindCopyEvents, ir.Fields{
		"srcman":   ir.Uint(ev.Src),
		"dstman":   ir.Uint(ev.Dst),
		"index":    ir.Uint(ev.Index),
		"field":    ir.Uint(ev.Field),
		"tree":     ir.Uint(ev.Tree),
		"startid":  ir.Uint(ev.StartID),
		"startgen": ir.Uint(ev.StartGen),
		"termid":   ir.Uint(ev.TermID),
		"termgen":  ir.Uint(ev.TermGen),
		"redop":    ir.Uint(ev.Redop),
		"mask":     mask,
	})
}

func (r *RunState) AddPhysicalInstance(ctx context.Context, inst state.Instance) (bool, error) {
	return r.apply(ctx, ir.KindPhysicalInstance, instanceFields(inst))
}

func (r *RunState) AddReductionInstance(ctx context.Context, inst state.Instance, fold bool, indirect uint64) (bool, error) {
	fields := instanceFields(inst)
	fields["fold"] = ir.Flag(fold)
	fields["indirect"] = ir.Uint(indirect)
	return r.apply(ctx, ir.KindReductionInstance, fields)
}

func instanceFields(inst state.Instance) ir.Fields {
	return ir.Fields{
		"iid":   ir.Uint(inst.IID),
		"mid":   ir.Uint(inst.MID),
		"index": ir.Uint(inst.Index),
		"field": ir.Uint(inst.Field),
		"tid":   ir.Uint(inst.Tree),
	}
}

func (r *RunState) AddOpUser(ctx context.Context, uid, idx, iid uint64) (bool, error) {
	return r.apply(ctx, ir.KindOpInstanceUser, ir.Fields{
		"uid": ir.Uint(uid), "idx": ir.Uint(idx), "iid": ir.Uint(iid),
	})
}
