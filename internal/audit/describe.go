package audit

import (
	"fmt"

	"github.com/unionhall/triage-service/internal/domain"
)

// sentence templates keyed by the closed action enum. The verb phrase reads
// as "<actor name> <phrase>" in the admin console feed.
var actionPhrases = map[domain.AuditAction]string{
	domain.ActionAutoAssign:     "assigned the ticket automatically",
	domain.ActionOverride:       "overrode the assignment",
	domain.ActionViewOriginal:   "viewed the original unredacted text",
	domain.ActionModelCall:      "recorded a model call",
	domain.ActionApprove:        "approved the drafted response",
	domain.ActionReject:         "rejected the drafted response",
	domain.ActionSettingsChange: "changed triage settings",
	domain.ActionStatusChange:   "moved the ticket to a new status",
}

// Describe renders an entry as a human-readable sentence for the audit feed.
func Describe(entry domain.AuditEntry) string {
	phrase, ok := actionPhrases[entry.Action]
	if !ok {
		phrase = "performed an unrecognized action"
	}
	name := entry.ActorName
	if name == "" {
		name = string(entry.Actor)
	}
	sentence := fmt.Sprintf("%s %s", name, phrase)
	if entry.TicketID != nil {
		sentence += fmt.Sprintf(" on ticket %s", *entry.TicketID)
	}
	if entry.Reason != nil && *entry.Reason != "" {
		sentence += fmt.Sprintf(" (%s)", *entry.Reason)
	}
	return sentence
}
