package ledger

import (
	"fmt"
	"strings"
)

// Causation declares what set an action in motion.
type Causation string

const (
	CausationAIDecision    Causation = "ai_decision"
	CausationNatural       Causation = "natural"
	CausationHumanDirected Causation = "human_directed"
)

// DutyOfCare grades how much care the acting agent owed.
type DutyOfCare string

const (
	DutyCritical DutyOfCare = "critical"
	DutyHigh     DutyOfCare = "high"
	DutyMedium   DutyOfCare = "medium"
	DutyLow      DutyOfCare = "low"
)

// KnowledgeLevel declares what the agent knew when it acted.
type KnowledgeLevel string

const (
	KnowledgeFull    KnowledgeLevel = "full"
	KnowledgePartial KnowledgeLevel = "partial"
	KnowledgeNone    KnowledgeLevel = "none"
)

// ControlLevel declares how directly the agent controlled the outcome.
type ControlLevel string

const (
	ControlDirect   ControlLevel = "direct"
	ControlIndirect ControlLevel = "indirect"
	ControlNone     ControlLevel = "none"
)

// Influence records one declared influence method applied to a decision,
// e.g. framing or praise. Weight discounts the legitimacy gain the decision
// would otherwise earn.
type Influence struct {
	Method string  `json:"method"`
	Weight float64 `json:"weight"`
}

// Context is the accountability context every appended event must carry.
// AgencyPresent is a pointer so an absent field is distinguishable from an
// explicit false on the wire.
type Context struct {
	Causation      Causation      `json:"causation"`
	AgencyPresent  *bool          `json:"agency_present"`
	DutyOfCare     DutyOfCare     `json:"duty_of_care"`
	KnowledgeLevel KnowledgeLevel `json:"knowledge_level"`
	ControlLevel   ControlLevel   `json:"control_level"`
	Influences     []Influence    `json:"influence_methods,omitempty"`
}

// Agency reports whether the context declares agency. False when the field
// was never set.
func (c *Context) Agency() bool {
	return c.AgencyPresent != nil && *c.AgencyPresent
}

var (
	validCausation = map[Causation]bool{
		CausationAIDecision: true, CausationNatural: true, CausationHumanDirected: true,
	}
	validDuty = map[DutyOfCare]bool{
		DutyCritical: true, DutyHigh: true, DutyMedium: true, DutyLow: true,
	}
	validKnowledge = map[KnowledgeLevel]bool{
		KnowledgeFull: true, KnowledgePartial: true, KnowledgeNone: true,
	}
	validControl = map[ControlLevel]bool{
		ControlDirect: true, ControlIndirect: true, ControlNone: true,
	}
)

// Validate checks that all five required context fields are present and hold
// known values. The returned error wraps ErrContextIncomplete and names every
// missing field so violation records stay actionable.
func (c *Context) Validate() error {
	var missing []string
	if !validCausation[c.Causation] {
		missing = append(missing, "causation")
	}
	if c.AgencyPresent == nil {
		missing = append(missing, "agency_present")
	}
	if !validDuty[c.DutyOfCare] {
		missing = append(missing, "duty_of_care")
	}
	if !validKnowledge[c.KnowledgeLevel] {
		missing = append(missing, "knowledge_level")
	}
	if !validControl[c.ControlLevel] {
		missing = append(missing, "control_level")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrContextIncomplete, strings.Join(missing, ", "))
	}
	for _, inf := range c.Influences {
		if inf.Weight < 0 || inf.Weight > 1 {
			return fmt.Errorf("%w: influence weight %v out of [0,1]", ErrContextIncomplete, inf.Weight)
		}
	}
	return nil
}
