package session

import "scriptbot/internal/backend"

// Stage is the workflow position of a session. Each stage carries only the
// data that is valid while in it.
type Stage interface {
	StageName() string
	isStage()
}

// Uploaded: the file was accepted and the action menu is shown.
type Uploaded struct{}

// AwaitingModifyDecision: "create task" was chosen; the defaults are shown
// with a yes/no customize question.
type AwaitingModifyDecision struct{}

// AwaitingJSONParams: an editable template was sent and a JSON object reply
// is expected before the expiry fires.
type AwaitingJSONParams struct {
	// Draft is the parameter set the template was rendered from.
	Draft backend.TaskParams
}

// AwaitingConfirmation: a complete parameter object was received and is
// waiting for confirm, edit or cancel.
type AwaitingConfirmation struct {
	Candidate backend.TaskParams
}

func (Uploaded) StageName() string               { return "uploaded" }
func (AwaitingModifyDecision) StageName() string { return "awaiting_modify_decision" }
func (AwaitingJSONParams) StageName() string     { return "awaiting_json_params" }
func (AwaitingConfirmation) StageName() string   { return "awaiting_confirmation" }

func (Uploaded) isStage()               {}
func (AwaitingModifyDecision) isStage() {}
func (AwaitingJSONParams) isStage()     {}
func (AwaitingConfirmation) isStage()   {}
