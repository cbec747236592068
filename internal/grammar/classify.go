package grammar

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/spy/internal/ir"
)

// ErrNoMatch is returned by Classify when a line matches no grammar.
// Unmatched lines are expected (the runtime logs other things too) and are
// counted, never fatal.
var ErrNoMatch = errors.New("line matches no grammar")

// MalformedError reports a line that matched a grammar but whose captured
// value cannot be represented, e.g. a decimal beyond uint64.
type MalformedError struct {
	Kind  ir.Kind
	Field string
	Value string
	Err   error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s line: field %s=%q: %v", e.Kind, e.Field, e.Value, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// IsMalformed returns true if err is a *MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

// Prefix is the shared line prefix pattern.
const Prefix = `\[(?P<node>[0-9]+) - (?P<thread>[0-9a-f]+)\] \{\w+\}\{legion_spy\}: `

var prefixRE = regexp.MustCompile(`^` + Prefix)

// Classify matches one line against the grammar table.
//
// It returns ErrNoMatch for lines no grammar accepts and *MalformedError for
// lines that match but carry an unrepresentable value. The returned record
// has Line == 0; the caller owns line numbering.
func Classify(line string) (ir.Record, error) {
	loc := prefixRE.FindStringSubmatchIndex(line)
	if loc == nil {
		return ir.Record{}, ErrNoMatch
	}
	nodeText := line[loc[2]:loc[3]]
	thread := line[loc[4]:loc[5]]
	body := line[loc[1]:]

	for i := range table {
		g := &table[i]
		m := g.body.FindStringSubmatch(body)
		if m == nil {
			continue
		}

		node, err := strconv.ParseUint(nodeText, 10, 64)
		if err != nil {
			return ir.Record{}, &MalformedError{Kind: g.Kind, Field: "node", Value: nodeText, Err: err}
		}

		fields := make(ir.Fields, len(g.Fields))
		for j, fs := range g.Fields {
			raw := m[j+1]
			v, err := convert(fs.Type, raw)
			if err != nil {
				return ir.Record{}, &MalformedError{Kind: g.Kind, Field: fs.Name, Value: raw, Err: err}
			}
			fields[fs.Name] = v
		}

		return ir.Record{
			Kind:   g.Kind,
			Node:   node,
			Thread: thread,
			Fields: fields,
		}, nil
	}
	return ir.Record{}, ErrNoMatch
}

func convert(t FieldType, raw string) (ir.Value, error) {
	switch t {
	case FieldUint:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		return ir.Uint(n), nil
	case FieldIdent:
		return ir.Ident(raw), nil
	case FieldFlag:
		return ir.Flag(raw == "1"), nil
	case FieldMask:
		mask := ir.Mask{}
		for _, part := range strings.Split(raw, ",") {
			if part == "" {
				continue
			}
			n, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return nil, err
			}
			mask = append(mask, n)
		}
		return mask, nil
	default:
		return nil, fmt.Errorf("unknown field type %v", t)
	}
}

// Format renders a record back into a log line that Classify accepts.
// Missing fields render as zero values. The level is always "info".
func Format(rec ir.Record) (string, error) {
	g, ok := Lookup(rec.Kind)
	if !ok {
		return "", fmt.Errorf("format: no grammar for %s", rec.Kind)
	}
	thread := rec.Thread
	if thread == "" {
		thread = "0"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d - %s] {info}{legion_spy}: %s", rec.Node, thread, g.Phrase)
	for _, fs := range g.Fields {
		sb.WriteByte(' ')
		v, present := rec.Fields[fs.Name]
		if !present {
			v = zeroValue(fs.Type)
		}
		if m, isMask := v.(ir.Mask); isMask && len(m) == 0 {
			// An empty mask still needs a token the mask pattern accepts.
			sb.WriteByte(',')
			continue
		}
		sb.WriteString(ir.FormatValue(v))
	}
	return sb.String(), nil
}

func zeroValue(t FieldType) ir.Value {
	switch t {
	case FieldIdent:
		return ir.Ident("unnamed")
	case FieldFlag:
		return ir.Flag(false)
	case FieldMask:
		return ir.Mask{0}
	default:
		return ir.Uint(0)
	}
}
