package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Unit files
	UnitInfo            Code = 1000
	UnitParse           Code = 1001
	UnitUnknownType     Code = 1002
	UnitUnknownOperand  Code = 1003
	UnitDuplicateName   Code = 1004
	UnitBadClass        Code = 1005
	UnitOperandMismatch Code = 1006
	UnitIntRange        Code = 1007

	// Lowering
	LowInfo             Code = 2000
	LowAlwaysNull       Code = 2001
	LowNegativeArgument Code = 2002
	LowZeroLength       Code = 2003
	LowInvariant        Code = 2004
	LowStrategy         Code = 2005
	LowLayout           Code = 2006

	// Execution of lowered graphs
	RunInfo       Code = 3000
	RunArrayStore Code = 3001
	RunFailure    Code = 3002

	// IO
	IOLoadFileError Code = 4001
	IOCacheError    Code = 4002

	// Configuration
	CfgInfo    Code = 5000
	CfgInvalid Code = 5001
)

var (
	codeDescription = map[Code]string{
		UnknownCode:         "Unknown error",
		UnitInfo:            "Unit information",
		UnitParse:           "Unit file cannot be decoded",
		UnitUnknownType:     "Unknown type name",
		UnitUnknownOperand:  "Copy operand refers to an undeclared value",
		UnitDuplicateName:   "Duplicate declaration",
		UnitBadClass:        "Invalid class declaration",
		UnitOperandMismatch: "Operand has the wrong kind",
		UnitIntRange:        "Integer does not fit a 32-bit copy operand",
		LowInfo:             "Lowering information",
		LowAlwaysNull:       "Copy always fails with a null array",
		LowNegativeArgument: "Copy always fails with a negative offset or length",
		LowZeroLength:       "Zero-length copy elided",
		LowInvariant:        "Graph invariant violated",
		LowStrategy:         "Copy strategy selected",
		LowLayout:           "Element layout unavailable",
		RunInfo:             "Execution information",
		RunArrayStore:       "Array store failed after a partial copy",
		RunFailure:          "Execution failed",
		IOLoadFileError:     "I/O error",
		IOCacheError:        "Cache error",
		CfgInfo:             "Configuration information",
		CfgInvalid:          "Invalid configuration",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("UNIT%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("LOW%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("RUN%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("CFG%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
