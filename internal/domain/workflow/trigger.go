package workflow

// Trigger is an action applied to a workflow state or task state.
type Trigger string

const (
	TriggerApprove Trigger = "approve"
	TriggerReject  Trigger = "reject"
	TriggerCancel  Trigger = "cancel"
	TriggerSkip    Trigger = "skip"
)
