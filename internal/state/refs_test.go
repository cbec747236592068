package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/spy/internal/ir"
)

func refStrings(refs []Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}

func TestRequiresDeclares(t *testing.T) {
	tests := []struct {
		name     string
		rec      ir.Record
		requires []string
		declares []string
	}{
		{
			name:     "subspace needs partition",
			rec:      ir.Record{Kind: ir.KindIndexSubspace, Fields: ir.Fields{"pid": ir.Uint(5), "uid": ir.Uint(9), "color": ir.Uint(0)}},
			requires: []string{"partition:5"},
			declares: []string{"space:9"},
		},
		{
			name:     "region requirement",
			rec:      ir.Record{Kind: ir.KindLogicalRequirement, Fields: ir.Fields{"uid": ir.Uint(3), "index": ir.Uint(1), "is_reg": ir.Flag(true), "ispace": ir.Uint(4), "fspace": ir.Uint(2)}},
			requires: []string{"op:3", "space:4", "fieldspace:2"},
			declares: []string{"req:3/1"},
		},
		{
			name:     "partition requirement",
			rec:      ir.Record{Kind: ir.KindLogicalRequirement, Fields: ir.Fields{"uid": ir.Uint(3), "index": ir.Uint(1), "is_reg": ir.Flag(false), "ispace": ir.Uint(4), "fspace": ir.Uint(2)}},
			requires: []string{"op:3", "partition:4", "fieldspace:2"},
			declares: []string{"req:3/1"},
		},
		{
			name:     "mapping dependence",
			rec:      ir.Record{Kind: ir.KindMappingDependence, Fields: ir.Fields{"ctx": ir.Uint(1), "prev_id": ir.Uint(2), "pidx": ir.Uint(0), "next_id": ir.Uint(3), "nidx": ir.Uint(1)}},
			requires: []string{"op:1", "req:2/0", "req:3/1"},
			declares: []string{},
		},
		{
			name:     "slice slice declares the child",
			rec:      ir.Record{Kind: ir.KindSliceSlice, Fields: ir.Fields{"slice1": ir.Uint(1), "slice2": ir.Uint(2)}},
			requires: []string{"slice:1"},
			declares: []string{"slice:2"},
		},
		{
			name:     "top task is unconditional",
			rec:      ir.Record{Kind: ir.KindTopTask, Fields: ir.Fields{"tid": ir.Uint(1), "uid": ir.Uint(7), "name": ir.Ident("main")}},
			requires: []string{},
			declares: []string{"op:7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.requires, refStrings(Requires(tt.rec)))
			assert.Equal(t, tt.declares, refStrings(Declares(tt.rec)))
		})
	}
}

func TestUnconditionalKindsRequireNothing(t *testing.T) {
	for _, k := range ir.Kinds() {
		rec := ir.Record{Kind: k, Fields: ir.Fields{}}
		if !k.Deferrable() {
			assert.Empty(t, Requires(rec), "%s is unconditional", k)
		} else {
			assert.NotEmpty(t, Requires(rec), "%s is deferrable and must name what it waits for", k)
		}
	}
}

func TestParseRef(t *testing.T) {
	r, err := ParseRef("req:12/0")
	require.NoError(t, err)
	assert.Equal(t, Ref{Entity: EntityReq, ID: "12/0"}, r)
	assert.Equal(t, "req:12/0", r.String())

	for _, bad := range []string{"", "space", "space:", "region:4"} {
		_, err := ParseRef(bad)
		assert.Error(t, err, bad)
	}
}
