package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/spy/internal/ir"
)

func TestGrammarCommand_Text(t *testing.T) {
	out, err := execute(t, NewGrammarCommand, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "KIND")
	assert.Regexp(t, `ProcessorMemory\s+deferrable\s+Processor Memory <pid:uint> <mid:uint> <band:uint> <lat:uint>`, out)
	assert.Regexp(t, `IndexSpace\s+unconditional\s+Index Space <uid:uint>`, out)
}

func TestGrammarCommand_JSONListsEveryKind(t *testing.T) {
	out, err := execute(t, NewGrammarCommand, "json")
	require.NoError(t, err)

	var resp struct {
		Data []GrammarEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, len(ir.Kinds()))

	byKind := map[string]GrammarEntry{}
	for _, e := range resp.Data {
		byKind[e.Kind] = e
	}
	copyEvents := byKind["CopyEvents"]
	assert.True(t, copyEvents.Deferrable)
	assert.Equal(t, "<mask:mask>", copyEvents.Fields[len(copyEvents.Fields)-1])
	assert.False(t, byKind["EventEvent"].Deferrable)
}
