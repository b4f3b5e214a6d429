// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by signalsai.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAccount identifies a customer account record.
	EntityAccount EntityType = "account"
	// EntitySignal identifies a signal record.
	EntitySignal EntityType = "signal"
	// EntityRecommendedAction identifies a recommended action record.
	EntityRecommendedAction EntityType = "recommended_action"
	// EntityInteraction identifies a user interaction record.
	EntityInteraction EntityType = "interaction"
	// EntityComment identifies a comment record.
	EntityComment EntityType = "comment"
	// EntityActionPlan identifies an action plan record.
	EntityActionPlan EntityType = "action_plan"
	// EntityNote identifies an account note record.
	EntityNote EntityType = "note"
)

// HealthCategory represents the canonical account health states used by the
// portfolio views.
type HealthCategory string

// Canonical account health categories.
const (
	HealthHealthy      HealthCategory = "Healthy"
	HealthAtRisk       HealthCategory = "At Risk"
	HealthTrendingRisk HealthCategory = "Trending Risk"
	HealthExtremeRisk  HealthCategory = "Extreme Risk"
)

// SignalCategory enumerates the signal taxonomy produced by the upstream
// analytics pipeline.
type SignalCategory string

// Canonical signal categories.
const (
	CategoryArchitecture   SignalCategory = "Architecture"
	CategoryRelationship   SignalCategory = "Relationship"
	CategoryUseCase        SignalCategory = "Use Case"
	CategoryUserEngagement SignalCategory = "User Engagement"
	CategoryBusiness       SignalCategory = "Business"
	CategoryEnablement     SignalCategory = "Enablement"
)

// Priority captures the triage priority attached to signals and plans.
type Priority string

// Canonical priorities in descending order of urgency.
const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Rank returns the numeric ordering weight for feed sorting. Unknown values
// sort below Low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Polarity classifies a signal as risk, growth opportunity, or enrichment.
type Polarity string

// Canonical signal polarities.
const (
	PolarityRisk        Polarity = "Risk"
	PolarityOpportunity Polarity = "Growth Levers"
	PolarityEnrichment  Polarity = "Enrichment"
)

// Rank returns the portfolio ordering weight: risk outranks opportunity,
// which outranks enrichment.
func (p Polarity) Rank() int {
	switch p {
	case PolarityRisk:
		return 2
	case PolarityOpportunity:
		return 1
	default:
		return 0
	}
}

// NormalizePolarity collapses upstream label variants onto the canonical
// polarity set. Empty and unrecognised values default to enrichment.
func NormalizePolarity(raw string) Polarity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "risk", "risk signal":
		return PolarityRisk
	case "opportunity", "opportunities", "growth", "growth lever", "growth levers":
		return PolarityOpportunity
	case "enrichment", "":
		return PolarityEnrichment
	default:
		return PolarityEnrichment
	}
}

// InteractionType enumerates the user feedback events recorded against
// signals and recommended actions.
type InteractionType string

// Canonical interaction types. Signal feedback uses like / not-accurate;
// action feedback uses useful / not_relevant; viewed marks a signal read.
const (
	InteractionLike        InteractionType = "like"
	InteractionNotAccurate InteractionType = "not-accurate"
	InteractionViewed      InteractionType = "viewed"
	InteractionUseful      InteractionType = "useful"
	InteractionNotRelevant InteractionType = "not_relevant"
)

// Opposite returns the mutually exclusive counterpart for feedback types,
// or empty when the type has no opposing pair.
func (t InteractionType) Opposite() InteractionType {
	switch t {
	case InteractionLike:
		return InteractionNotAccurate
	case InteractionNotAccurate:
		return InteractionLike
	case InteractionUseful:
		return InteractionNotRelevant
	case InteractionNotRelevant:
		return InteractionUseful
	default:
		return ""
	}
}

// PlanStatus enumerates action plan workflow states.
type PlanStatus string

// Canonical plan statuses.
const (
	PlanStatusPending    PlanStatus = "pending"
	PlanStatusInProgress PlanStatus = "in_progress"
	PlanStatusComplete   PlanStatus = "complete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Account represents a customer account tracked by the system. Accounts are
// created by dataset loads and never deleted within a session.
type Account struct {
	Base
	Name           string         `json:"name"`
	Industry       string         `json:"industry"`
	Health         HealthCategory `json:"health"`
	GPAScore       float64        `json:"gpa_score"`
	LifetimeBill   float64        `json:"lifetime_billings"`
	ActiveUsers    int            `json:"active_users"`
	DatasetCount   int            `json:"dataset_count"`
	RowCount       int64          `json:"row_count"`
	Owner          string         `json:"owner"`
	AccountExec    string         `json:"account_executive"`
	CSM            string         `json:"csm"`
	RenewalBase    float64        `json:"renewal_baseline"`
	RenewalFcst    float64        `json:"renewal_forecast"`
	NextRenewal    *time.Time     `json:"next_renewal,omitempty"`
	NameCorrected  bool           `json:"name_corrected,omitempty"`
}

// Signal represents a single pre-computed insight about an account.
type Signal struct {
	Base
	AccountID  string         `json:"account_id"`
	Category   SignalCategory `json:"category"`
	Name       string         `json:"name"`
	Priority   Priority       `json:"priority"`
	Confidence float64        `json:"confidence"`
	Summary    string         `json:"summary"`
	Rationale  string         `json:"rationale"`
	Polarity   Polarity       `json:"signal_polarity"`
	ActionID   *string        `json:"action_id,omitempty"`
	CallDate   time.Time      `json:"call_date"`
}

// Play is a playbook template attached to a recommended action. Plays copied
// into an action plan are value snapshots, never live references.
type Play struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Role        string `json:"role"`
}

// RecommendedAction is an AI-recommended intervention shared by one or more
// signals on the same account.
type RecommendedAction struct {
	Base
	AccountID   string   `json:"account_id"`
	Recommended string   `json:"recommended"`
	Rationale   string   `json:"rationale"`
	Plays       []Play   `json:"plays"`
	Priority    Priority `json:"priority"`
	Confidence  float64  `json:"confidence"`
}

// Interaction is one append-only feedback event against a signal or a
// recommended action. Exactly one of SignalID / ActionID is set.
type Interaction struct {
	Base
	SignalID *string         `json:"signal_id,omitempty"`
	ActionID *string         `json:"action_id,omitempty"`
	Type     InteractionType `json:"interaction_type"`
	UserID   string          `json:"user_id"`
	UserName string          `json:"user_name"`
}

// TargetID returns the id the interaction applies to, regardless of kind.
func (i Interaction) TargetID() string {
	if i.SignalID != nil {
		return *i.SignalID
	}
	if i.ActionID != nil {
		return *i.ActionID
	}
	return ""
}

// Comment is user commentary attached to exactly one signal or account.
type Comment struct {
	Base
	SignalID  *string    `json:"signal_id,omitempty"`
	AccountID *string    `json:"account_id,omitempty"`
	AuthorID  string     `json:"author_id"`
	Author    string     `json:"author"`
	Text      string     `json:"text"`
	Edited    bool       `json:"edited"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}

// ActionPlan promotes a recommended action into tracked work for an account.
// At most one live plan exists per (account_id, action_id) pair.
type ActionPlan struct {
	Base
	AccountID   string     `json:"account_id"`
	ActionID    *string    `json:"action_id,omitempty"`
	LookupKey   string     `json:"lookup_key,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Plays       []Play     `json:"plays"`
	Status      PlanStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Assignee    string     `json:"assignee"`
	CreatedBy   string     `json:"created_by"`
	UpdatedBy   string     `json:"last_updated_by"`
}

// MaxPlaysPerPlan caps the number of plays a single plan may carry.
const MaxPlaysPerPlan = 3

// Note is free-form account commentary with pin and soft-delete support.
type Note struct {
	Base
	AccountID string     `json:"account_id"`
	Text      string     `json:"text"`
	Pinned    bool       `json:"pinned"`
	AuthorID  string     `json:"author_id"`
	Author    string     `json:"author"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Live reports whether the note has not been soft-deleted.
func (n Note) Live() bool { return n.DeletedAt == nil }

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
