package workflow

// Trigger represents an event that can cause a state transition.
type Trigger string

const (
	// Version triggers.
	TriggerSubmit    Trigger = "SUBMIT"
	TriggerApprove   Trigger = "APPROVE"
	TriggerReject    Trigger = "REJECT"
	TriggerSupersede Trigger = "SUPERSEDE"

	// Phase triggers.
	TriggerStart    Trigger = "START"
	TriggerComplete Trigger = "COMPLETE"
	TriggerReset    Trigger = "RESET"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
