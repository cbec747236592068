package engine

import (
	"context"
	"fmt"

	"github.com/roach88/spy/internal/ir"
	"github.com/roach88/spy/internal/state"
)

// Dispatch applies one record to the state and reports whether it committed.
//
// false with a nil error means the record references something that does
// not exist yet and must be retried later. Unconditional kinds never report
// false: if the state does, Dispatch returns a contract violation.
func Dispatch(ctx context.Context, st state.State, rec ir.Record) (bool, error) {
	if !rec.Kind.Valid() {
		return false, &RuntimeError{
			Code:    ErrCodeUnknownKind,
			Message: fmt.Sprintf("no dispatch for record kind %s", rec.Kind),
			Record:  &rec,
		}
	}
	ok, err := call(ctx, st, rec)
	if err != nil {
		return false, NewStateFailure(rec, err)
	}
	if !ok && !rec.Kind.Deferrable() {
		return false, NewContractViolation(rec)
	}
	return ok, nil
}

func call(ctx context.Context, st state.State, rec ir.Record) (bool, error) {
	f := rec.Uint
	switch rec.Kind {
	case ir.KindUtility:
		return st.AddUtility(ctx, f("pid"))
	case ir.KindProcessor:
		return st.AddProcessor(ctx, f("pid"), f("util"), f("kind"))
	case ir.KindMemory:
		return st.AddMemory(ctx, f("mid"), f("capacity"))
	case ir.KindProcessorMemory:
		return st.SetProcessorMemory(ctx, f("pid"), f("mid"), f("band"), f("lat"))
	case ir.KindMemoryMemory:
		return st.SetMemoryMemory(ctx, f("mone"), f("mtwo"), f("band"), f("lat"))

	case ir.KindIndexSpace:
		return st.AddIndexSpace(ctx, f("uid"))
	case ir.KindIndexPartition:
		return st.AddIndexPartition(ctx, f("pid"), f("uid"), rec.Flag("disjoint"), f("color"))
	case ir.KindIndexSubspace:
		return st.AddIndexSubspace(ctx, f("pid"), f("uid"), f("color"))
	case ir.KindFieldSpace:
		return st.AddFieldSpace(ctx, f("uid"))
	case ir.KindFieldCreation:
		return st.AddField(ctx, f("uid"), f("fid"))
	case ir.KindRegion:
		return st.AddRegion(ctx, f("iid"), f("fid"), f("tid"))

	case ir.KindTopTask:
		return st.AddTopTask(ctx, f("tid"), f("uid"), rec.Ident("name"))
	case ir.KindIndividualTask:
		return st.AddIndividualTask(ctx, f("ctx"), f("tid"), f("uid"), rec.Ident("name"))
	case ir.KindIndexTask:
		return st.AddIndexTask(ctx, f("ctx"), f("tid"), f("uid"), rec.Ident("name"))
	case ir.KindMappingOp:
		return st.AddMappingOp(ctx, f("ctx"), f("uid"))
	case ir.KindCloseOp:
		return st.AddCloseOp(ctx, f("ctx"), f("uid"))
	case ir.KindCopyOp:
		return st.AddCopyOp(ctx, f("ctx"), f("uid"))
	case ir.KindDeletionOp:
		return st.AddDeletionOp(ctx, f("ctx"), f("uid"))
	case ir.KindIndexSlice:
		return st.AddIndexSlice(ctx, f("index"), f("slice"))
	case ir.KindSliceSlice:
		return st.AddSliceSlice(ctx, f("slice1"), f("slice2"))
	case ir.KindSlicePoint:
		return st.AddSlicePoint(ctx, f("slice"), f("point"), f("dim"), f("val1"), f("val2"), f("val3"))
	case ir.KindPointPoint:
		return st.AddPointPoint(ctx, f("point1"), f("point2"))

	case ir.KindLogicalRequirement:
		return st.AddRequirement(ctx, state.Requirement{
			UID:        f("uid"),
			Index:      f("index"),
			IsRegion:   rec.Flag("is_reg"),
			IndexSpace: f("ispace"),
			FieldSpace: f("fspace"),
			TreeID:     f("tid"),
			Privilege:  f("priv"),
			Coherence:  f("coher"),
			Redop:      f("redop"),
		})
	case ir.KindRequirementField:
		return st.AddRequirementField(ctx, f("uid"), f("index"), f("fid"))
	case ir.KindMappingDependence:
		return st.AddMappingDependence(ctx, f("ctx"), f("prev_id"), f("pidx"), f("next_id"), f("nidx"), f("dtype"))

	case ir.KindTaskInstanceRequirement:
		return st.AddInstanceRequirement(ctx, f("uid"), f("idx"), f("index"))

	case ir.KindEventEvent:
		return st.AddEventDependence(ctx, f("idone"), f("genone"), f("idtwo"), f("gentwo"))
	case ir.KindImplicitEvent:
		return st.AddImplicitDependence(ctx, f("idone"), f("genone"), f("idtwo"), f("gentwo"))
	case ir.KindOpEvents:
		return st.AddOpEvents(ctx, f("uid"), f("startid"), f("startgen"), f("termid"), f("termgen"))
	case ir.KindCopyEvents:
		return st.AddCopyEvents(ctx, state.CopyEvent{
			Src:      f("srcman"),
			Dst:      f("dstman"),
			Index:    f("index"),
			Field:    f("field"),
			Tree:     f("tree"),
			StartID:  f("startid"),
			StartGen: f("startgen"),
			TermID:   f("termid"),
			TermGen:  f("termgen"),
			Redop:    f("redop"),
			Mask:     rec.Mask("mask"),
		})

	case ir.KindPhysicalInstance:
		return st.AddPhysicalInstance(ctx, instance(rec))
	case ir.KindReductionInstance:
		return st.AddReductionInstance(ctx, instance(rec), rec.Flag("fold"), f("indirect"))
	case ir.KindOpInstanceUser:
		return st.AddOpUser(ctx, f("uid"), f("idx"), f("iid"))

	default:
		panic(fmt.Sprintf("engine: kind %s has no dispatch case", rec.Kind))
	}
}

func instance(rec ir.Record) state.Instance {
	return state.Instance{
		IID:   rec.Uint("iid"),
		MID:   rec.Uint("mid"),
		Index: rec.Uint("index"),
		Field: rec.Uint("field"),
		Tree:  rec.Uint("tid"),
	}
}
