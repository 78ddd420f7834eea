package rstmgr

import "fmt"

// CauseKind identifies which branch of ResetCause is populated.
type CauseKind int

const (
	CauseUnknown CauseKind = iota
	CausePowerOn
	CauseEscalation
)

// String returns the short name used in transcripts and the run store.
func (k CauseKind) String() string {
	switch k {
	case CausePowerOn:
		return "por"
	case CauseEscalation:
		return "escalation"
	default:
		return "unknown"
	}
}

// ParseCauseKind is the inverse of CauseKind.String.
func ParseCauseKind(s string) (CauseKind, error) {
	switch s {
	case "por":
		return CausePowerOn, nil
	case "escalation":
		return CauseEscalation, nil
	case "unknown":
		return CauseUnknown, nil
	}
	return CauseUnknown, fmt.Errorf("unknown reset cause %q", s)
}

// ResetCause is the classified reason for the current boot.
// Raw always holds the snapshot it was decoded from.
type ResetCause struct {
	Kind CauseKind
	Raw  ResetInfo
}

// Classify decodes one register snapshot. Power-on wins over escalation.
func Classify(raw ResetInfo) ResetCause {
	switch {
	case raw&InfoPor != 0:
		return ResetCause{Kind: CausePowerOn, Raw: raw}
	case raw&InfoEscalation != 0:
		return ResetCause{Kind: CauseEscalation, Raw: raw}
	default:
		return ResetCause{Kind: CauseUnknown, Raw: raw}
	}
}

func (c ResetCause) String() string {
	if c.Kind == CauseUnknown {
		return fmt.Sprintf("unknown(%d)", uint32(c.Raw))
	}
	return c.Kind.String()
}
