package grammar

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/spy/internal/ir"
)

// FieldType describes how a captured token converts to an ir.Value.
type FieldType int

const (
	FieldUint  FieldType = iota // [0-9]+ -> ir.Uint
	FieldIdent                  // \w+ -> ir.Ident
	FieldFlag                   // [0-1] -> ir.Flag
	FieldMask                   // [0-9,]+ -> ir.Mask
)

var fieldPatterns = [...]string{
	FieldUint:  `[0-9]+`,
	FieldIdent: `\w+`,
	FieldFlag:  `[0-1]`,
	FieldMask:  `[0-9,]+`,
}

var fieldTypeNames = [...]string{
	FieldUint:  "uint",
	FieldIdent: "ident",
	FieldFlag:  "flag",
	FieldMask:  "mask",
}

func (t FieldType) String() string {
	if t < 0 || int(t) >= len(fieldTypeNames) {
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
	return fieldTypeNames[t]
}

// FieldSpec names one positional field of a grammar.
type FieldSpec struct {
	Name string
	Type FieldType
}

// Grammar pairs a record kind with its keyword phrase and field schema.
type Grammar struct {
	Kind   ir.Kind
	Phrase string
	Fields []FieldSpec

	body *regexp.Regexp
}

// Pattern returns the start-anchored body pattern (without the shared prefix).
func (g Grammar) Pattern() string {
	return g.body.String()
}

func u(name string) FieldSpec { return FieldSpec{Name: name, Type: FieldUint} }
func id(name string) FieldSpec { return FieldSpec{Name: name, Type: FieldIdent} }
func fl(name string) FieldSpec { return FieldSpec{Name: name, Type: FieldFlag} }
func mk(name string) FieldSpec { return FieldSpec{Name: name, Type: FieldMask} }

// table is built once at init. Order matters only for documentation and
// diagnostics output. The patterns are disjoint: where one phrase extends
// another ("Processor", "Processor Memory") the shorter grammar's first
// field is numeric and cannot match the longer phrase's next word.
var table = []Grammar{
	// Machine shape
	{Kind: ir.KindUtility, Phrase: "Utility", Fields: []FieldSpec{u("pid")}},
	{Kind: ir.KindProcessor, Phrase: "Processor", Fields: []FieldSpec{u("pid"), u("util"), u("kind")}},
	{Kind: ir.KindMemory, Phrase: "Memory", Fields: []FieldSpec{u("mid"), u("capacity")}},
	{Kind: ir.KindProcessorMemory, Phrase: "Processor Memory", Fields: []FieldSpec{u("pid"), u("mid"), u("band"), u("lat")}},
	{Kind: ir.KindMemoryMemory, Phrase: "Memory Memory", Fields: []FieldSpec{u("mone"), u("mtwo"), u("band"), u("lat")}},

	// Region tree shape
	{Kind: ir.KindIndexSpace, Phrase: "Index Space", Fields: []FieldSpec{u("uid")}},
	{Kind: ir.KindIndexPartition, Phrase: "Index Partition", Fields: []FieldSpec{u("pid"), u("uid"), fl("disjoint"), u("color")}},
	{Kind: ir.KindIndexSubspace, Phrase: "Index Subspace", Fields: []FieldSpec{u("pid"), u("uid"), u("color")}},
	{Kind: ir.KindFieldSpace, Phrase: "Field Space", Fields: []FieldSpec{u("uid")}},
	{Kind: ir.KindFieldCreation, Phrase: "Field Creation", Fields: []FieldSpec{u("uid"), u("fid")}},
	{Kind: ir.KindRegion, Phrase: "Region", Fields: []FieldSpec{u("iid"), u("fid"), u("tid")}},

	// Operations
	{Kind: ir.KindTopTask, Phrase: "Top Task", Fields: []FieldSpec{u("tid"), u("uid"), id("name")}},
	{Kind: ir.KindIndividualTask, Phrase: "Individual Task", Fields: []FieldSpec{u("ctx"), u("tid"), u("uid"), id("name")}},
	{Kind: ir.KindIndexTask, Phrase: "Index Task", Fields: []FieldSpec{u("ctx"), u("tid"), u("uid"), id("name")}},
	{Kind: ir.KindMappingOp, Phrase: "Mapping Operation", Fields: []FieldSpec{u("ctx"), u("uid")}},
	{Kind: ir.KindCloseOp, Phrase: "Close Operation", Fields: []FieldSpec{u("ctx"), u("uid")}},
	{Kind: ir.KindCopyOp, Phrase: "Copy Operation", Fields: []FieldSpec{u("ctx"), u("uid")}},
	{Kind: ir.KindDeletionOp, Phrase: "Deletion Operation", Fields: []FieldSpec{u("ctx"), u("uid")}},
	{Kind: ir.KindIndexSlice, Phrase: "Index Slice", Fields: []FieldSpec{u("index"), u("slice")}},
	{Kind: ir.KindSliceSlice, Phrase: "Slice Slice", Fields: []FieldSpec{u("slice1"), u("slice2")}},
	{Kind: ir.KindSlicePoint, Phrase: "Slice Point", Fields: []FieldSpec{u("slice"), u("point"), u("dim"), u("val1"), u("val2"), u("val3")}},
	{Kind: ir.KindPointPoint, Phrase: "Point Point", Fields: []FieldSpec{u("point1"), u("point2")}},

	// Logical dependence analysis
	{Kind: ir.KindLogicalRequirement, Phrase: "Logical Requirement", Fields: []FieldSpec{
		u("uid"), u("index"), fl("is_reg"), u("ispace"), u("fspace"), u("tid"), u("priv"), u("coher"), u("redop"),
	}},
	{Kind: ir.KindRequirementField, Phrase: "Logical Requirement Field", Fields: []FieldSpec{u("uid"), u("index"), u("fid")}},
	{Kind: ir.KindMappingDependence, Phrase: "Mapping Dependence", Fields: []FieldSpec{
		u("ctx"), u("prev_id"), u("pidx"), u("next_id"), u("nidx"), u("dtype"),
	}},

	// Physical dependence analysis
	{Kind: ir.KindTaskInstanceRequirement, Phrase: "Task Instance Requirement", Fields: []FieldSpec{u("uid"), u("idx"), u("index")}},

	// Events
	{Kind: ir.KindEventEvent, Phrase: "Event Event", Fields: []FieldSpec{u("idone"), u("genone"), u("idtwo"), u("gentwo")}},
	{Kind: ir.KindImplicitEvent, Phrase: "Implicit Event", Fields: []FieldSpec{u("idone"), u("genone"), u("idtwo"), u("gentwo")}},
	{Kind: ir.KindOpEvents, Phrase: "Op Events", Fields: []FieldSpec{u("uid"), u("startid"), u("startgen"), u("termid"), u("termgen")}},
	{Kind: ir.KindCopyEvents, Phrase: "Copy Events", Fields: []FieldSpec{
		u("srcman"), u("dstman"), u("index"), u("field"), u("tree"),
		u("startid"), u("startgen"), u("termid"), u("termgen"), u("redop"), mk("mask"),
	}},

	// Physical instances
	{Kind: ir.KindPhysicalInstance, Phrase: "Physical Instance", Fields: []FieldSpec{u("iid"), u("mid"), u("index"), u("field"), u("tid")}},
	{Kind: ir.KindReductionInstance, Phrase: "Reduction Instance", Fields: []FieldSpec{
		u("iid"), u("mid"), u("index"), u("field"), u("tid"), fl("fold"), u("indirect"),
	}},
	{Kind: ir.KindOpInstanceUser, Phrase: "Op Instance User", Fields: []FieldSpec{u("uid"), u("idx"), u("iid")}},
}

var byKind = make(map[ir.Kind]int, len(table))

func init() {
	for i := range table {
		g := &table[i]
		g.body = regexp.MustCompile(bodyPattern(g.Phrase, g.Fields))
		if _, dup := byKind[g.Kind]; dup {
			panic(fmt.Sprintf("grammar: duplicate grammar for %s", g.Kind))
		}
		byKind[g.Kind] = i
	}
	for _, k := range ir.Kinds() {
		if _, ok := byKind[k]; !ok {
			panic(fmt.Sprintf("grammar: no grammar for %s", k))
		}
	}
}

// bodyPattern builds `^<phrase>( (?P<field>pat))*`. Only the start is
// anchored: text after the last field is ignored, so a task name such as
// `foo::bar<int>` is captured as `foo`.
func bodyPattern(phrase string, fields []FieldSpec) string {
	var sb strings.Builder
	sb.WriteString("^")
	sb.WriteString(regexp.QuoteMeta(phrase))
	for _, f := range fields {
		fmt.Fprintf(&sb, " (?P<%s>%s)", f.Name, fieldPatterns[f.Type])
	}
	return sb.String()
}

// Table returns the grammars in classification order.
// The returned slice is a copy; Grammar values share compiled patterns.
func Table() []Grammar {
	out := make([]Grammar, len(table))
	copy(out, table)
	return out
}

// Lookup returns the grammar for a kind.
func Lookup(k ir.Kind) (Grammar, bool) {
	i, ok := byKind[k]
	if !ok {
		return Grammar{}, false
	}
	return table[i], true
}
