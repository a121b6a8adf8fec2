package domain

import "time"

// ActorType identifies who performed an audited action.
type ActorType string

const (
	ActorAI        ActorType = "AI"
	ActorAdmin     ActorType = "ADMIN"
	ActorProponent ActorType = "PROPONENT"
	ActorSystem    ActorType = "SYSTEM"
)

// AuditAction is the closed set of actions the trail records.
type AuditAction string

const (
	ActionAutoAssign     AuditAction = "AUTO_ASSIGN"
	ActionOverride       AuditAction = "OVERRIDE"
	ActionViewOriginal   AuditAction = "VIEW_ORIGINAL"
	ActionModelCall      AuditAction = "MODEL_CALL"
	ActionApprove        AuditAction = "APPROVE"
	ActionReject         AuditAction = "REJECT"
	ActionSettingsChange AuditAction = "SETTINGS_CHANGE"
	ActionStatusChange   AuditAction = "STATUS_CHANGE"
)

// ValidAction reports whether a is one of the known audit actions.
func ValidAction(a AuditAction) bool {
	switch a {
	case ActionAutoAssign, ActionOverride, ActionViewOriginal,
		ActionModelCall, ActionApprove, ActionReject, ActionSettingsChange,
		ActionStatusChange:
		return true
	}
	return false
}

// ValidActor reports whether t is one of the known actor types.
func ValidActor(t ActorType) bool {
	switch t {
	case ActorAI, ActorAdmin, ActorProponent, ActorSystem:
		return true
	}
	return false
}

// AuditEntry is an immutable record of a single actor action. Entries are
// appended once, assigned a monotonic ID and server timestamp by the store,
// and never edited or removed.
type AuditEntry struct {
	ID        int64
	TicketID  *string
	Actor     ActorType
	ActorName string
	Action    AuditAction
	Reason    *string
	Metadata  map[string]any
	CreatedAt time.Time
}
