package ir

import (
	"encoding/json"
	"fmt"
)

// Kind identifies one record type of the trace log.
//
// The zero value is KindUnknown and never produced by the classifier.
// Kinds are declared in grammar order: the classifier tries them in this
// order and the dispatcher switches over all of them.
type Kind int

const (
	KindUnknown Kind = iota

	// Machine shape
	KindUtility
	KindProcessor
	KindMemory
	KindProcessorMemory
	KindMemoryMemory

	// Region tree shape
	KindIndexSpace
	KindIndexPartition
	KindIndexSubspace
	KindFieldSpace
	KindFieldCreation
	KindRegion

	// Operations
	KindTopTask
	KindIndividualTask
	KindIndexTask
	KindMappingOp
	KindCloseOp
	KindCopyOp
	KindDeletionOp
	KindIndexSlice
	KindSliceSlice
	KindSlicePoint
	KindPointPoint

	// Logical dependence analysis
	KindLogicalRequirement
	KindRequirementField
	KindMappingDependence

	// Physical dependence analysis
	KindTaskInstanceRequirement

	// Events
	KindEventEvent
	KindImplicitEvent
	KindOpEvents
	KindCopyEvents

	// Physical instances
	KindPhysicalInstance
	KindReductionInstance
	KindOpInstanceUser

	kindSentinel
)

var kindNames = [...]string{
	KindUnknown:                 "Unknown",
	KindUtility:                 "Utility",
	KindProcessor:               "Processor",
	KindMemory:                  "Memory",
	KindProcessorMemory:         "ProcessorMemory",
	KindMemoryMemory:            "MemoryMemory",
	KindIndexSpace:              "IndexSpace",
	KindIndexPartition:          "IndexPartition",
	KindIndexSubspace:           "IndexSubspace",
	KindFieldSpace:              "FieldSpace",
	KindFieldCreation:           "FieldCreation",
	KindRegion:                  "Region",
	KindTopTask:                 "TopTask",
	KindIndividualTask:          "IndividualTask",
	KindIndexTask:               "IndexTask",
	KindMappingOp:               "MappingOp",
	KindCloseOp:                 "CloseOp",
	KindCopyOp:                  "CopyOp",
	KindDeletionOp:              "DeletionOp",
	KindIndexSlice:              "IndexSlice",
	KindSliceSlice:              "SliceSlice",
	KindSlicePoint:              "SlicePoint",
	KindPointPoint:              "PointPoint",
	KindLogicalRequirement:      "LogicalRequirement",
	KindRequirementField:        "RequirementField",
	KindMappingDependence:       "MappingDependence",
	KindTaskInstanceRequirement: "TaskInstanceRequirement",
	KindEventEvent:              "EventEvent",
	KindImplicitEvent:           "ImplicitEvent",
	KindOpEvents:                "OpEvents",
	KindCopyEvents:              "CopyEvents",
	KindPhysicalInstance:        "PhysicalInstance",
	KindReductionInstance:       "ReductionInstance",
	KindOpInstanceUser:          "OpInstanceUser",
}

// unconditional lists the kinds whose mutation can never reference an
// entity that is not yet committed. They declare brand-new entities (or,
// for event edges, create both endpoints on demand) and are never deferred.
var unconditional = map[Kind]bool{
	KindUtility:       true,
	KindProcessor:     true,
	KindMemory:        true,
	KindIndexSpace:    true,
	KindFieldSpace:    true,
	KindTopTask:       true,
	KindEventEvent:    true,
	KindImplicitEvent: true,
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, int(kindSentinel)-1)
	for k := KindUtility; k < kindSentinel; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k > KindUnknown && k < kindSentinel
}

// String returns the kind's stable name (e.g. "IndexSubspace").
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Deferrable reports whether a record of this kind may be reported as
// "not ready" by the state and must then be held for replay.
func (k Kind) Deferrable() bool {
	return k.Valid() && !unconditional[k]
}

// ParseKind returns the kind with the given name.
func ParseKind(name string) (Kind, error) {
	for k := KindUtility; k < kindSentinel; k++ {
		if kindNames[k] == name {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown record kind %q", name)
}

// MarshalJSON encodes the kind as its name.
func (k Kind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("marshal kind: invalid kind %d", int(k))
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseKind(name)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalText lets kinds key JSON objects, e.g. per-kind counters.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("marshal kind: invalid kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name used as an object key.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// UnmarshalYAML decodes a kind name from YAML scenario files.
func (k *Kind) UnmarshalYAML(unmarshal func(any) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	parsed, err := ParseKind(name)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
