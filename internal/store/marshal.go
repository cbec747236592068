package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/spy/internal/ir"
)

// marshalFields converts record fields to canonical JSON TEXT for storage.
func marshalFields(fields ir.Fields) (string, error) {
	if fields == nil {
		fields = ir.Fields{}
	}
	data, err := ir.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses stored fields. ir.Fields decodes numbers via
// json.Number so values above 2^53 survive.
func unmarshalFields(data string) (ir.Fields, error) {
	if data == "" || data == "{}" {
		return ir.Fields{}, nil
	}
	var fields ir.Fields
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return fields, nil
}

// marshalRecord stores a whole record, position included, for the
// unresolved dump.
func marshalRecord(rec ir.Record) (string, error) {
	data, err := ir.MarshalCanonical(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

func unmarshalRecord(data string) (ir.Record, error) {
	var rec ir.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return ir.Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

func marshalSummary(sum Summary) (string, error) {
	data, err := json.Marshal(sum)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	return string(data), nil
}

func unmarshalSummary(data string) (Summary, error) {
	var sum Summary
	if data == "" || data == "{}" {
		return sum, nil
	}
	if err := json.Unmarshal([]byte(data), &sum); err != nil {
		return Summary{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	return sum, nil
}
