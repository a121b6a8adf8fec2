package domain

// Reasoning captures the model's stated grounds for a suggestion.
type Reasoning struct {
	Factors        []string `json:"factors"`
	RiskFactors    []string `json:"risk_factors"`
	Recommendation string   `json:"recommendation"`
}

// ExtractedEntity is a named entity the model pulled out of the ticket text.
type ExtractedEntity struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Suggestion is the model's triage proposal for a ticket. It is produced once
// by the model call and never mutated afterwards.
type Suggestion struct {
	Category          string            `json:"category"`
	Priority          TicketPriority    `json:"priority"`
	SuggestedAssignee string            `json:"suggested_assignee"`
	Confidence        float64           `json:"confidence"`
	Model             string            `json:"model"`
	Explanation       string            `json:"explanation"`
	Reasoning         Reasoning         `json:"reasoning"`
	ExtractedEntities []ExtractedEntity `json:"extracted_entities"`
}
