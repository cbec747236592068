package state

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/spy/internal/ir"
)

// Graph is the in-memory State. It accumulates the machine shape, region
// tree, operations, requirements, events and instances of a trace.
//
// All mutations are idempotent: repeating a committed call is a no-op that
// returns true. Nothing is ever removed.
type Graph struct {
	procs       map[uint64]*Processor
	mems        map[uint64]*Memory
	procMem     map[[2]uint64]Affinity
	memMem      map[[2]uint64]Affinity
	spaces      map[uint64]*IndexSpace
	partitions  map[uint64]*IndexPartition
	fieldSpaces map[uint64]map[uint64]bool
	regions     map[[3]uint64]bool
	ops         map[uint64]*Operation
	slices      map[uint64]Slice
	points      map[uint64]Point
	reqs        map[[2]uint64]*RequirementNode
	mappingDeps map[[6]uint64]bool
	eventEdges  map[EventEdge]bool
	insts       map[uint64]*InstanceNode
	copies      map[string]CopyEvent
	users       map[[3]uint64]bool
}

// Processor is a processor of the machine.
type Processor struct {
	ID      uint64
	Utility bool
	Util    uint64
	Kind    uint64
}

// Memory is a memory of the machine.
type Memory struct {
	ID       uint64
	Capacity uint64
}

// Affinity is a bandwidth/latency pair between two machine components.
type Affinity struct {
	Bandwidth uint64
	Latency   uint64
}

// IndexSpace is a node of the index space tree. Top-level spaces have no
// parent partition.
type IndexSpace struct {
	ID        uint64
	Parent    uint64
	HasParent bool
	Color     uint64
}

// IndexPartition is a partition of an index space.
type IndexPartition struct {
	ID       uint64
	Parent   uint64
	Disjoint bool
	Color    uint64
}

// Operation is a task or other operation launched in a parent task context.
type Operation struct {
	ID        uint64
	Kind      ir.Kind
	Parent    uint64
	HasParent bool
	TaskID    uint64
	Name      string
	Start     Event
	Term      Event
	HasEvents bool
}

// Slice is a slice of an index task, owned by the task or by a parent slice.
type Slice struct {
	ID          uint64
	Owner       uint64
	OwnerIsTask bool
}

// Point is a point task, owned by a slice or by a parent point.
type Point struct {
	ID           uint64
	Owner        uint64
	OwnerIsSlice bool
	Dim          uint64
	Values       [3]uint64
}

// RequirementNode is a logical requirement plus what later records attach.
type RequirementNode struct {
	Requirement
	Fields    []uint64
	Instances []uint64
}

// Event is a (id, generation) pair.
type Event struct {
	ID  uint64
	Gen uint64
}

// EventEdge orders two events. Implicit edges come from the runtime rather
// than from explicit user dependences.
type EventEdge struct {
	From     Event
	To       Event
	Implicit bool
}

// InstanceNode is a physical or reduction instance.
type InstanceNode struct {
	Instance
	Reduction bool
	Fold      bool
	Indirect  uint64
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		procs:       make(map[uint64]*Processor),
		mems:        make(map[uint64]*Memory),
		procMem:     make(map[[2]uint64]Affinity),
		memMem:      make(map[[2]uint64]Affinity),
		spaces:      make(map[uint64]*IndexSpace),
		partitions:  make(map[uint64]*IndexPartition),
		fieldSpaces: make(map[uint64]map[uint64]bool),
		regions:     make(map[[3]uint64]bool),
		ops:         make(map[uint64]*Operation),
		slices:      make(map[uint64]Slice),
		points:      make(map[uint64]Point),
		reqs:        make(map[[2]uint64]*RequirementNode),
		mappingDeps: make(map[[6]uint64]bool),
		eventEdges:  make(map[EventEdge]bool),
		insts:       make(map[uint64]*InstanceNode),
		copies:      make(map[string]CopyEvent),
		users:       make(map[[3]uint64]bool),
	}
}

var _ State = (*Graph)(nil)

func (g *Graph) AddUtility(_ context.Context, pid uint64) (bool, error) {
	p := g.proc(pid)
	p.Utility = true
	return true, nil
}

func (g *Graph) AddProcessor(_ context.Context, pid, util, kind uint64) (bool, error) {
	p := g.proc(pid)
	p.Util = util
	p.Kind = kind
	return true, nil
}

func (g *Graph) proc(pid uint64) *Processor {
	p, ok := g.procs[pid]
	if !ok {
		p = &Processor{ID: pid}
		g.procs[pid] = p
	}
	return p
}

func (g *Graph) AddMemory(_ context.Context, mid, capacity uint64) (bool, error) {
	g.mems[mid] = &Memory{ID: mid, Capacity: capacity}
	return true, nil
}

func (g *Graph) SetProcessorMemory(_ context.Context, pid, mid, bandwidth, latency uint64) (bool, error) {
	if g.procs[pid] == nil || g.mems[mid] == nil {
		return false, nil
	}
	g.procMem[[2]uint64{pid, mid}] = Affinity{Bandwidth: bandwidth, Latency: latency}
	return true, nil
}

func (g *Graph) SetMemoryMemory(_ context.Context, mone, mtwo, bandwidth, latency uint64) (bool, error) {
	if g.mems[mone] == nil || g.mems[mtwo] == nil {
		return false, nil
	}
	g.memMem[[2]uint64{mone, mtwo}] = Affinity{Bandwidth: bandwidth, Latency: latency}
	return true, nil
}

func (g *Graph) AddIndexSpace(_ context.Context, uid uint64) (bool, error) {
	if _, ok := g.spaces[uid]; !ok {
		g.spaces[uid] = &IndexSpace{ID: uid}
	}
	return true, nil
}

func (g *Graph) AddIndexPartition(_ context.Context, pid, uid uint64, disjoint bool, color uint64) (bool, error) {
	if g.spaces[pid] == nil {
		return false, nil
	}
	g.partitions[uid] = &IndexPartition{ID: uid, Parent: pid, Disjoint: disjoint, Color: color}
	return true, nil
}

func (g *Graph) AddIndexSubspace(_ context.Context, pid, uid, color uint64) (bool, error) {
	if g.partitions[pid] == nil {
		return false, nil
	}
	g.spaces[uid] = &IndexSpace{ID: uid, Parent: pid, HasParent: true, Color: color}
	return true, nil
}

func (g *Graph) AddFieldSpace(_ context.Context, uid uint64) (bool, error) {
	if g.fieldSpaces[uid] == nil {
		g.fieldSpaces[uid] = make(map[uint64]bool)
	}
	return true, nil
}

func (g *Graph) AddField(_ context.Context, uid, fid uint64) (bool, error) {
	fs := g.fieldSpaces[uid]
	if fs == nil {
		return false, nil
	}
	fs[fid] = true
	return true, nil
}

func (g *Graph) AddRegion(_ context.Context, iid, fid, tid uint64) (bool, error) {
	if g.spaces[iid] == nil || g.fieldSpaces[fid] == nil {
		return false, nil
	}
	g.regions[[3]uint64{iid, fid, tid}] = true
	return true, nil
}

func (g *Graph) AddTopTask(_ context.Context, tid, uid uint64, name string) (bool, error) {
	if existing := g.ops[uid]; existing != nil {
		existing.Kind, existing.TaskID, existing.Name = ir.KindTopTask, tid, name
		return true, nil
	}
	g.ops[uid] = &Operation{ID: uid, Kind: ir.KindTopTask, TaskID: tid, Name: name}
	return true, nil
}

func (g *Graph) AddIndividualTask(_ context.Context, parent, tid, uid uint64, name string) (bool, error) {
	return g.addOp(ir.KindIndividualTask, parent, uid, tid, name), nil
}

func (g *Graph) AddIndexTask(_ context.Context, parent, tid, uid uint64, name string) (bool, error) {
	return g.addOp(ir.KindIndexTask, parent, uid, tid, name), nil
}

func (g *Graph) AddMappingOp(_ context.Context, parent, uid uint64) (bool, error) {
	return g.addOp(ir.KindMappingOp, parent, uid, 0, ""), nil
}

func (g *Graph) AddCloseOp(_ context.Context, parent, uid uint64) (bool, error) {
	return g.addOp(ir.KindCloseOp, parent, uid, 0, ""), nil
}

func (g *Graph) AddCopyOp(_ context.Context, parent, uid uint64) (bool, error) {
	return g.addOp(ir.KindCopyOp, parent, uid, 0, ""), nil
}

func (g *Graph) AddDeletionOp(_ context.Context, parent, uid uint64) (bool, error) {
	return g.addOp(ir.KindDeletionOp, parent, uid, 0, ""), nil
}

func (g *Graph) addOp(kind ir.Kind, parent, uid, tid uint64, name string) bool {
	if g.ops[parent] == nil {
		return false
	}
	if existing := g.ops[uid]; existing != nil {
		// Keep events attached by an earlier Op Events record.
		existing.Kind, existing.Parent, existing.HasParent = kind, parent, true
		existing.TaskID, existing.Name = tid, name
		return true
	}
	g.ops[uid] = &Operation{ID: uid, Kind: kind, Parent: parent, HasParent: true, TaskID: tid, Name: name}
	return true
}

func (g *Graph) AddIndexSlice(_ context.Context, index, slice uint64) (bool, error) {
	if g.ops[index] == nil {
		return false, nil
	}
	g.slices[slice] = Slice{ID: slice, Owner: index, OwnerIsTask: true}
	return true, nil
}

func (g *Graph) AddSliceSlice(_ context.Context, slice1, slice2 uint64) (bool, error) {
	if _, ok := g.slices[slice1]; !ok {
		return false, nil
	}
	g.slices[slice2] = Slice{ID: slice2, Owner: slice1}
	return true, nil
}

func (g *Graph) AddSlicePoint(_ context.Context, slice, point, dim, val1, val2, val3 uint64) (bool, error) {
	if _, ok := g.slices[slice]; !ok {
		return false, nil
	}
	g.points[point] = Point{ID: point, Owner: slice, OwnerIsSlice: true, Dim: dim, Values: [3]uint64{val1, val2, val3}}
	return true, nil
}

func (g *Graph) AddPointPoint(_ context.Context, point1, point2 uint64) (bool, error) {
	src, ok := g.points[point1]
	if !ok {
		return false, nil
	}
	g.points[point2] = Point{ID: point2, Owner: point1, Dim: src.Dim, Values: src.Values}
	return true, nil
}

func (g *Graph) AddRequirement(_ context.Context, req Requirement) (bool, error) {
	if g.ops[req.UID] == nil || g.fieldSpaces[req.FieldSpace] == nil {
		return false, nil
	}
	if req.IsRegion {
		if g.spaces[req.IndexSpace] == nil {
			return false, nil
		}
	} else if g.partitions[req.IndexSpace] == nil {
		return false, nil
	}
	key := [2]uint64{req.UID, req.Index}
	if existing := g.reqs[key]; existing != nil {
		existing.Requirement = req
		return true, nil
	}
	g.reqs[key] = &RequirementNode{Requirement: req}
	return true, nil
}

func (g *Graph) AddRequirementField(_ context.Context, uid, index, fid uint64) (bool, error) {
	r := g.reqs[[2]uint64{uid, index}]
	if r == nil {
		return false, nil
	}
	if !slices.Contains(r.Fields, fid) {
		r.Fields = append(r.Fields, fid)
	}
	return true, nil
}

func (g *Graph) AddMappingDependence(_ context.Context, parent, prevID, pidx, nextID, nidx, dtype uint64) (bool, error) {
	if g.ops[parent] == nil || g.reqs[[2]uint64{prevID, pidx}] == nil || g.reqs[[2]uint64{nextID, nidx}] == nil {
		return false, nil
	}
	g.mappingDeps[[6]uint64{parent, prevID, pidx, nextID, nidx, dtype}] = true
	return true, nil
}

func (g *Graph) AddInstanceRequirement(_ context.Context, uid, idx, index uint64) (bool, error) {
	r := g.reqs[[2]uint64{uid, idx}]
	if r == nil {
		return false, nil
	}
	if !slices.Contains(r.Instances, index) {
		r.Instances = append(r.Instances, index)
	}
	return true, nil
}

func (g *Graph) AddEventDependence(_ context.Context, idone, genone, idtwo, gentwo uint64) (bool, error) {
	g.eventEdges[EventEdge{From: Event{idone, genone}, To: Event{idtwo, gentwo}}] = true
	return true, nil
}

func (g *Graph) AddImplicitDependence(_ context.Context, idone, genone, idtwo, gentwo uint64) (bool, error) {
	g.eventEdges[EventEdge{From: Event{idone, genone}, To: Event{idtwo, gentwo}, Implicit: true}] = true
	return true, nil
}

func (g *Graph) AddOpEvents(_ context.Context, uid, startID, startGen, termID, termGen uint64) (bool, error) {
	op := g.ops[uid]
	if op == nil {
		return false, nil
	}
	op.Start = Event{startID, startGen}
	op.Term = Event{termID, termGen}
	op.HasEvents = true
	return true, nil
}

func (g *Graph) AddCopyEvents(_ context.Context, ev CopyEvent) (bool, error) {
	if g.insts[ev.Src] == nil || g.insts[ev.Dst] == nil {
		return false, nil
	}
	ev.Mask = slices.Clone(ev.Mask)
	g.copies[copyKey(ev)] = ev
	return true, nil
}

func copyKey(ev CopyEvent) string {
	return fmt.Sprintf("%d->%d idx=%d field=%d tree=%d start=%d/%d term=%d/%d redop=%d mask=%s",
		ev.Src, ev.Dst, ev.Index, ev.Field, ev.Tree, ev.StartID, ev.StartGen, ev.TermID, ev.TermGen,
		ev.Redop, ir.FormatValue(ir.Mask(ev.Mask)))
}

func (g *Graph) AddPhysicalInstance(_ context.Context, inst Instance) (bool, error) {
	if g.mems[inst.MID] == nil {
		return false, nil
	}
	g.insts[inst.IID] = &InstanceNode{Instance: inst}
	return true, nil
}

func (g *Graph) AddReductionInstance(_ context.Context, inst Instance, fold bool, indirect uint64) (bool, error) {
	if g.mems[inst.MID] == nil {
		return false, nil
	}
	g.insts[inst.IID] = &InstanceNode{Instance: inst, Reduction: true, Fold: fold, Indirect: indirect}
	return true, nil
}

func (g *Graph) AddOpUser(_ context.Context, uid, idx, iid uint64) (bool, error) {
	if g.ops[uid] == nil || g.insts[iid] == nil {
		return false, nil
	}
	g.users[[3]uint64{uid, idx, iid}] = true
	return true, nil
}

// Processor returns the processor with the given id.
func (g *Graph) Processor(pid uint64) (Processor, bool) {
	p, ok := g.procs[pid]
	if !ok {
		return Processor{}, false
	}
	return *p, true
}

// Affinity returns the processor-memory affinity, if one was logged.
func (g *Graph) Affinity(pid, mid uint64) (Affinity, bool) {
	a, ok := g.procMem[[2]uint64{pid, mid}]
	return a, ok
}

// IndexSpace returns the index space with the given id.
func (g *Graph) IndexSpace(uid uint64) (IndexSpace, bool) {
	s, ok := g.spaces[uid]
	if !ok {
		return IndexSpace{}, false
	}
	return *s, true
}

// Operation returns the operation with the given id.
func (g *Graph) Operation(uid uint64) (Operation, bool) {
	op, ok := g.ops[uid]
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

// Has reports whether the referenced entity exists.
func (g *Graph) Has(r Ref) bool {
	if r.Entity == EntityReq {
		uid, index, ok := parseReqID(r.ID)
		return ok && contains(g.reqs, [2]uint64{uid, index})
	}
	id, err := strconv.ParseUint(r.ID, 10, 64)
	if err != nil {
		return false
	}
	switch r.Entity {
	case EntityProc:
		return contains(g.procs, id)
	case EntityMem:
		return contains(g.mems, id)
	case EntitySpace:
		return contains(g.spaces, id)
	case EntityPartition:
		return contains(g.partitions, id)
	case EntityFieldSpace:
		return contains(g.fieldSpaces, id)
	case EntityOp:
		return contains(g.ops, id)
	case EntitySlice:
		return contains(g.slices, id)
	case EntityPoint:
		return contains(g.points, id)
	case EntityInst:
		return contains(g.insts, id)
	}
	return false
}

func contains[K comparable, V any](m map[K]V, k K) bool {
	_, ok := m[k]
	return ok
}

// parseReqID splits a requirement ID of the form "uid/index".
func parseReqID(id string) (uid, index uint64, ok bool) {
	u, i, found := strings.Cut(id, "/")
	if !found {
		return 0, 0, false
	}
	uid, err := strconv.ParseUint(u, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	index, err = strconv.ParseUint(i, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return uid, index, true
}

func (g *Graph) entityCount(e Entity) int {
	switch e {
	case EntityProc:
		return len(g.procs)
	case EntityMem:
		return len(g.mems)
	case EntitySpace:
		return len(g.spaces)
	case EntityPartition:
		return len(g.partitions)
	case EntityFieldSpace:
		return len(g.fieldSpaces)
	case EntityOp:
		return len(g.ops)
	case EntitySlice:
		return len(g.slices)
	case EntityPoint:
		return len(g.points)
	case EntityReq:
		return len(g.reqs)
	case EntityInst:
		return len(g.insts)
	}
	return 0
}

// Counts returns the number of entities per class plus the number of edges
// per relation. Keys are stable; zero counts are included.
func (g *Graph) Counts() map[string]int {
	counts := make(map[string]int)
	for _, e := range Entities() {
		counts[string(e)] = g.entityCount(e)
	}
	fields := 0
	for _, fs := range g.fieldSpaces {
		fields += len(fs)
	}
	counts["field"] = fields
	counts["region"] = len(g.regions)
	counts["proc_mem"] = len(g.procMem)
	counts["mem_mem"] = len(g.memMem)
	counts["mapping_dep"] = len(g.mappingDeps)
	counts["event_edge"] = len(g.eventEdges)
	counts["copy"] = len(g.copies)
	counts["user"] = len(g.users)
	return counts
}

// Snapshot renders the whole graph as a sorted list of facts. Two graphs
// built from the same records in any order have equal snapshots.
func (g *Graph) Snapshot() []string {
	var facts []string
	add := func(format string, args ...any) { facts = append(facts, fmt.Sprintf(format, args...)) }

	for _, p := range g.procs {
		add("proc %d utility=%t util=%d kind=%d", p.ID, p.Utility, p.Util, p.Kind)
	}
	for _, m := range g.mems {
		add("mem %d capacity=%d", m.ID, m.Capacity)
	}
	for k, a := range g.procMem {
		add("proc_mem %d %d band=%d lat=%d", k[0], k[1], a.Bandwidth, a.Latency)
	}
	for k, a := range g.memMem {
		add("mem_mem %d %d band=%d lat=%d", k[0], k[1], a.Bandwidth, a.Latency)
	}
	for _, s := range g.spaces {
		if s.HasParent {
			add("space %d parent=%d color=%d", s.ID, s.Parent, s.Color)
		} else {
			add("space %d top", s.ID)
		}
	}
	for _, p := range g.partitions {
		add("partition %d parent=%d disjoint=%t color=%d", p.ID, p.Parent, p.Disjoint, p.Color)
	}
	for uid, fs := range g.fieldSpaces {
		add("fieldspace %d", uid)
		for fid := range fs {
			add("field %d/%d", uid, fid)
		}
	}
	for k := range g.regions {
		add("region %d %d %d", k[0], k[1], k[2])
	}
	for _, op := range g.ops {
		add("op %d kind=%s parent=%d task=%d name=%s", op.ID, op.Kind, op.Parent, op.TaskID, op.Name)
		if op.HasEvents {
			add("op_events %d start=%d/%d term=%d/%d", op.ID, op.Start.ID, op.Start.Gen, op.Term.ID, op.Term.Gen)
		}
	}
	for _, s := range g.slices {
		add("slice %d owner=%d task=%t", s.ID, s.Owner, s.OwnerIsTask)
	}
	for _, p := range g.points {
		add("point %d owner=%d slice=%t dim=%d values=%v", p.ID, p.Owner, p.OwnerIsSlice, p.Dim, p.Values)
	}
	for _, r := range g.reqs {
		fields := slices.Clone(r.Fields)
		slices.Sort(fields)
		insts := slices.Clone(r.Instances)
		slices.Sort(insts)
		add("req %d/%d region=%t space=%d fspace=%d tid=%d priv=%d coher=%d redop=%d fields=%v instances=%v",
			r.UID, r.Index, r.IsRegion, r.IndexSpace, r.FieldSpace, r.TreeID, r.Privilege, r.Coherence, r.Redop,
			fields, insts)
	}
	for k := range g.mappingDeps {
		add("mapping_dep ctx=%d %d/%d -> %d/%d type=%d", k[0], k[1], k[2], k[3], k[4], k[5])
	}
	for e := range g.eventEdges {
		add("event_edge %d/%d -> %d/%d implicit=%t", e.From.ID, e.From.Gen, e.To.ID, e.To.Gen, e.Implicit)
	}
	for _, inst := range g.insts {
		add("inst %d mem=%d index=%d field=%d tree=%d reduction=%t fold=%t indirect=%d",
			inst.IID, inst.MID, inst.Index, inst.Field, inst.Tree, inst.Reduction, inst.Fold, inst.Indirect)
	}
	for key := range g.copies {
		add("copy %s", key)
	}
	for k := range g.users {
		add("user op=%d idx=%d inst=%d", k[0], k[1], k[2])
	}

	slices.Sort(facts)
	return facts
}

// String summarizes the graph by its non-zero counts.
func (g *Graph) String() string {
	counts := g.Counts()
	keys := make([]string, 0, len(counts))
	for k, n := range counts {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return "graph{" + strings.Join(parts, " ") + "}"
}
