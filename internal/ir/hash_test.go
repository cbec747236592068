package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	return Record{
		Kind:   KindIndexSubspace,
		Line:   3,
		Node:   0,
		Thread: "7f3a",
		Fields: Fields{"pid": Uint(5), "uid": Uint(9), "color": Uint(0)},
	}
}

func TestMarshalCanonicalRecord(t *testing.T) {
	data, err := MarshalCanonical(sampleRecord())
	require.NoError(t, err)
	assert.Equal(t,
		`{"fields":{"color":0,"pid":5,"uid":9},"kind":"IndexSubspace","line":3,"node":0,"thread":"7f3a"}`,
		string(data))
}

func TestMarshalCanonicalRejectsFloatsAndNull(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"x": nil})
	assert.Error(t, err)
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	data, err := MarshalCanonical("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(data))
}

func TestRecordIDDeterminism(t *testing.T) {
	id1, err := RecordID(sampleRecord())
	require.NoError(t, err)
	id2, err := RecordID(sampleRecord())
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "RecordID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestRecordIDChangesWithInput(t *testing.T) {
	base := sampleRecord()

	otherLine := sampleRecord()
	otherLine.Line = 4

	otherField := sampleRecord()
	otherField.Fields = Fields{"pid": Uint(6), "uid": Uint(9), "color": Uint(0)}

	otherKind := sampleRecord()
	otherKind.Kind = KindIndexPartition

	assert.NotEqual(t, MustRecordID(base), MustRecordID(otherLine), "line is part of identity")
	assert.NotEqual(t, MustRecordID(base), MustRecordID(otherField))
	assert.NotEqual(t, MustRecordID(base), MustRecordID(otherKind))
}

func TestRecordJSONRoundTrip(t *testing.T) {
	rec := sampleRecord()
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rec.Kind, decoded.Kind)
	assert.Equal(t, rec.Line, decoded.Line)
	assert.Equal(t, rec.Thread, decoded.Thread)
	assert.True(t, rec.Fields.Equal(decoded.Fields))
	assert.Equal(t, MustRecordID(rec), MustRecordID(decoded))
}

func TestRecordAccessors(t *testing.T) {
	rec := Record{
		Kind: KindCopyEvents,
		Fields: Fields{
			"srcman": Uint(1),
			"mask":   Mask{0, 2},
			"name":   Ident("copy"),
			"fold":   Flag(true),
		},
	}
	assert.Equal(t, uint64(1), rec.Uint("srcman"))
	assert.Equal(t, uint64(0), rec.Uint("missing"))
	assert.Equal(t, []uint64{0, 2}, rec.Mask("mask"))
	assert.Equal(t, "copy", rec.Ident("name"))
	assert.True(t, rec.Flag("fold"))
	assert.Equal(t, "line 0: CopyEvents fold=1 mask=0,2 name=copy srcman=1", rec.String())
}
