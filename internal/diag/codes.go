package diag

import "fmt"

// Code is a compact numeric diagnostic identifier with a stable string form.
type Code uint16

const (
	UnknownCode Code = 0

	// Query syntax: the query text itself is malformed.
	SynInfo                    Code = 1000
	SynEmptyFrom               Code = 1001
	SynEmptyReference          Code = 1002
	SynMalformedReference      Code = 1003
	SynUnknownAggregate        Code = 1004
	SynAggregateWithoutGroupBy Code = 1005
	SynEmptyCondition          Code = 1006
	SynDuplicateLabel          Code = 1007

	// Query resolution: well-formed, but references something unknown.
	ResInfo                  Code = 2000
	ResUnknownType           Code = 2001
	ResUnknownField          Code = 2002
	ResUnknownGroupBy        Code = 2003
	ResUnknownConditionField Code = 2004
	ResContextualCondition   Code = 2005

	// Contextual field index.
	IdxInfo                  Code = 3000
	IdxSimpleNameCollision   Code = 3001
	IdxUnknownContextTypeRef Code = 3002

	// Recordings.
	IOOpenRecording Code = 4001
)

var codeDescription = map[Code]string{
	UnknownCode:                "Unknown error",
	SynInfo:                    "Query syntax information",
	SynEmptyFrom:               "Query selects from no event type",
	SynEmptyReference:          "Empty field reference",
	SynMalformedReference:      "Malformed field reference",
	SynUnknownAggregate:        "Unknown aggregate function",
	SynAggregateWithoutGroupBy: "Aggregate function requires group-by",
	SynEmptyCondition:          "Condition without field reference",
	SynDuplicateLabel:          "Duplicate column label",
	ResInfo:                    "Query resolution information",
	ResUnknownType:             "Unknown event type",
	ResUnknownField:            "Unknown field",
	ResUnknownGroupBy:          "Unknown group-by field",
	ResUnknownConditionField:   "Unknown condition field",
	ResContextualCondition:     "Condition on contextual field",
	IdxInfo:                    "Contextual index information",
	IdxSimpleNameCollision:     "Contextual type simple-name collision",
	IdxUnknownContextTypeRef:   "Context type filter names no contextual type",
	IOOpenRecording:            "Failed to open recording",
}

// ID returns the prefixed identifier, e.g. "SYN1003".
func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("RES%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("IDX%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

// Title returns the short human description of the code.
func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}

// Channel groups codes into the independent error channels of a run.
type Channel uint8

const (
	ChannelOther Channel = iota
	ChannelSyntax
	ChannelResolution
)

// Channel reports which channel the code belongs to.
func (c Code) Channel() Channel {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return ChannelSyntax
	case ic >= 2000 && ic < 3000:
		return ChannelResolution
	}
	return ChannelOther
}
