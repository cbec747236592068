package state

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/spy/internal/ir"
)

// Entity names a class of graph entity that records can reference.
type Entity string

const (
	EntityProc       Entity = "proc"
	EntityMem        Entity = "mem"
	EntitySpace      Entity = "space"
	EntityPartition  Entity = "partition"
	EntityFieldSpace Entity = "fieldspace"
	EntityOp         Entity = "op"
	EntitySlice      Entity = "slice"
	EntityPoint      Entity = "point"
	EntityReq        Entity = "req"
	EntityInst       Entity = "inst"
)

// Entities lists every entity class in a stable order.
func Entities() []Entity {
	return []Entity{
		EntityProc, EntityMem, EntitySpace, EntityPartition, EntityFieldSpace,
		EntityOp, EntitySlice, EntityPoint, EntityReq, EntityInst,
	}
}

// Ref identifies one entity, e.g. partition:5 or req:12/0.
type Ref struct {
	Entity Entity `json:"entity"`
	ID     string `json:"id"`
}

func (r Ref) String() string {
	return string(r.Entity) + ":" + r.ID
}

// ParseRef parses the "entity:id" form produced by String.
func ParseRef(s string) (Ref, error) {
	entity, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return Ref{}, fmt.Errorf("ref %q: want entity:id", s)
	}
	if !slices.Contains(Entities(), Entity(entity)) {
		return Ref{}, fmt.Errorf("ref %q: unknown entity %q", s, entity)
	}
	return Ref{Entity: Entity(entity), ID: id}, nil
}

func ref(e Entity, id uint64) Ref {
	return Ref{Entity: e, ID: strconv.FormatUint(id, 10)}
}

// reqRef keys a requirement by owning operation and requirement index.
func reqRef(uid, index uint64) Ref {
	return Ref{Entity: EntityReq, ID: fmt.Sprintf("%d/%d", uid, index)}
}

// Requires returns the entities that must exist before rec can apply.
// Unconditional kinds require nothing.
func Requires(rec ir.Record) []Ref {
	f := rec.Uint
	switch rec.Kind {
	case ir.KindProcessorMemory:
		return []Ref{ref(EntityProc, f("pid")), ref(EntityMem, f("mid"))}
	case ir.KindMemoryMemory:
		return []Ref{ref(EntityMem, f("mone")), ref(EntityMem, f("mtwo"))}
	case ir.KindIndexPartition:
		return []Ref{ref(EntitySpace, f("pid"))}
	case ir.KindIndexSubspace:
		return []Ref{ref(EntityPartition, f("pid"))}
	case ir.KindFieldCreation:
		return []Ref{ref(EntityFieldSpace, f("uid"))}
	case ir.KindRegion:
		return []Ref{ref(EntitySpace, f("iid")), ref(EntityFieldSpace, f("fid"))}
	case ir.KindIndividualTask, ir.KindIndexTask,
		ir.KindMappingOp, ir.KindCloseOp, ir.KindCopyOp, ir.KindDeletionOp:
		return []Ref{ref(EntityOp, f("ctx"))}
	case ir.KindIndexSlice:
		return []Ref{ref(EntityOp, f("index"))}
	case ir.KindSliceSlice:
		return []Ref{ref(EntitySlice, f("slice1"))}
	case ir.KindSlicePoint:
		return []Ref{ref(EntitySlice, f("slice"))}
	case ir.KindPointPoint:
		return []Ref{ref(EntityPoint, f("point1"))}
	case ir.KindLogicalRequirement:
		space := ref(EntityPartition, f("ispace"))
		if rec.Flag("is_reg") {
			space = ref(EntitySpace, f("ispace"))
		}
		return []Ref{ref(EntityOp, f("uid")), space, ref(EntityFieldSpace, f("fspace"))}
	case ir.KindRequirementField:
		return []Ref{reqRef(f("uid"), f("index"))}
	case ir.KindMappingDependence:
		return []Ref{
			ref(EntityOp, f("ctx")),
			reqRef(f("prev_id"), f("pidx")),
			reqRef(f("next_id"), f("nidx")),
		}
	case ir.KindTaskInstanceRequirement:
		return []Ref{reqRef(f("uid"), f("idx"))}
	case ir.KindOpEvents:
		return []Ref{ref(EntityOp, f("uid"))}
	case ir.KindCopyEvents:
		return []Ref{ref(EntityInst, f("srcman")), ref(EntityInst, f("dstman"))}
	case ir.KindPhysicalInstance, ir.KindReductionInstance:
		return []Ref{ref(EntityMem, f("mid"))}
	case ir.KindOpInstanceUser:
		return []Ref{ref(EntityOp, f("uid")), ref(EntityInst, f("iid"))}
	default:
		return nil
	}
}

// Declares returns the entities rec creates once applied.
func Declares(rec ir.Record) []Ref {
	f := rec.Uint
	switch rec.Kind {
	case ir.KindUtility, ir.KindProcessor:
		return []Ref{ref(EntityProc, f("pid"))}
	case ir.KindMemory:
		return []Ref{ref(EntityMem, f("mid"))}
	case ir.KindIndexSpace, ir.KindIndexSubspace:
		return []Ref{ref(EntitySpace, f("uid"))}
	case ir.KindIndexPartition:
		return []Ref{ref(EntityPartition, f("uid"))}
	case ir.KindFieldSpace:
		return []Ref{ref(EntityFieldSpace, f("uid"))}
	case ir.KindTopTask, ir.KindIndividualTask, ir.KindIndexTask,
		ir.KindMappingOp, ir.KindCloseOp, ir.KindCopyOp, ir.KindDeletionOp:
		return []Ref{ref(EntityOp, f("uid"))}
	case ir.KindIndexSlice:
		return []Ref{ref(EntitySlice, f("slice"))}
	case ir.KindSliceSlice:
		return []Ref{ref(EntitySlice, f("slice2"))}
	case ir.KindSlicePoint:
		return []Ref{ref(EntityPoint, f("point"))}
	case ir.KindPointPoint:
		return []Ref{ref(EntityPoint, f("point2"))}
	case ir.KindLogicalRequirement:
		return []Ref{reqRef(f("uid"), f("index"))}
	case ir.KindPhysicalInstance, ir.KindReductionInstance:
		return []Ref{ref(EntityInst, f("iid"))}
	default:
		return nil
	}
}
