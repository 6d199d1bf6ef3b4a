package audit

import "time"

// Action names a pipeline step worth recording.
type Action string

const (
	ActionCompanyResolved     Action = "company_resolved"
	ActionResolutionFailed    Action = "company_resolution_failed"
	ActionDocumentsRendered   Action = "documents_rendered"
	ActionArchiveCreated      Action = "archive_created"
	ActionArchiveSkipped      Action = "archive_skipped"
	ActionHistoryAppendFailed Action = "history_append_failed"
	ActionSiteGenerated       Action = "site_generated"
)

// Outcome of the recorded step.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event is emitted by the generation pipeline. Keep it transport-agnostic so
// sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	CNPJ      string    `json:"cnpj,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}
