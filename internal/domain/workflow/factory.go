package workflow

// BuildVersionStateMachine creates a state machine configured for the version
// approval lifecycle. REJECTED and SUPERSEDED have no outgoing transitions:
// a rejected version is revised into a fresh DRAFT version, never reopened.
func BuildVersionStateMachine(initialState State, observers ...TransitionObserver) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateDraft).
		Permit(TriggerSubmit, StatePendingApproval)

	builder.Configure(StatePendingApproval).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	builder.Configure(StateApproved).
		Permit(TriggerSupersede, StateSuperseded)

	for _, observer := range observers {
		builder.OnTransition(observer)
	}

	return builder.Build(initialState)
}

// BuildPhaseStateMachine creates a state machine configured for the phase
// lifecycle. The forward path is NOT_STARTED → IN_PROGRESS → COMPLETE; RESET
// is the administrative override that forces a phase back to NOT_STARTED and
// is audited as a destructive action by the caller.
func BuildPhaseStateMachine(initialState State, observers ...TransitionObserver) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateNotStarted).
		Permit(TriggerStart, StateInProgress)

	builder.Configure(StateInProgress).
		Permit(TriggerComplete, StateComplete).
		Permit(TriggerReset, StateNotStarted)

	builder.Configure(StateComplete).
		Permit(TriggerReset, StateNotStarted)

	for _, observer := range observers {
		builder.OnTransition(observer)
	}

	return builder.Build(initialState)
}
