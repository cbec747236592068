package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/spy/internal/grammar"
)

// GrammarEntry describes one record kind.
type GrammarEntry struct {
	Kind       string   `json:"kind"`
	Phrase     string   `json:"phrase"`
	Fields     []string `json:"fields"`
	Deferrable bool     `json:"deferrable"`
	Pattern    string   `json:"pattern"`
}

// NewGrammarCommand creates the grammar command.
func NewGrammarCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "grammar",
		Short: "Print the record grammars",
		Long: `Print every record kind the classifier recognizes: its keyword phrase,
its positional fields and whether it may be deferred.

Unconditional kinds apply immediately; deferrable kinds wait until the
entities they reference exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := grammarEntries()
			out := rootOpts.formatter(cmd)
			if rootOpts.Format == "json" {
				return out.Success(entries)
			}

			tw := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tCLASS\tLINE")
			for _, e := range entries {
				class := "unconditional"
				if e.Deferrable {
					class = "deferrable"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s %s\n", e.Kind, class, e.Phrase, strings.Join(e.Fields, " "))
			}
			return tw.Flush()
		},
	}
}

func grammarEntries() []GrammarEntry {
	table := grammar.Table()
	entries := make([]GrammarEntry, 0, len(table))
	for _, g := range table {
		fields := make([]string, len(g.Fields))
		for i, f := range g.Fields {
			fields[i] = fmt.Sprintf("<%s:%s>", f.Name, f.Type)
		}
		entries = append(entries, GrammarEntry{
			Kind:       g.Kind.String(),
			Phrase:     g.Phrase,
			Fields:     fields,
			Deferrable: g.Kind.Deferrable(),
			Pattern:    g.Pattern(),
		})
	}
	return entries
}
