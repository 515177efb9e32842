package bridge

// Step identifies a position in a flow orchestrator's state machine. Each
// flow variant advances through a fixed order of steps; "idle", "complete"
// and "error" sit outside every order array.
type Step string

const (
	StepIdle               Step = "idle"
	StepSwitchingChain     Step = "switching-chain"
	StepCheckingBalances   Step = "checking-balances"
	StepApprovingWPOKT     Step = "approving-wpokt"
	StepConvertingLockbox  Step = "converting-lockbox"
	StepApprovingXPOKT     Step = "approving-xpokt"
	StepBridging           Step = "bridging"
	StepWaitingRelay       Step = "waiting-relay"
	StepInitiating         Step = "initiating"
	StepWaitingVAA         Step = "waiting-attestation"
	StepClaiming           Step = "claiming"
	StepApprovingLockbox   Step = "approving-lockbox"
	StepWithdrawingLockbox Step = "withdrawing-lockbox"
	StepComplete           Step = "complete"
	StepError              Step = "error"
)

// StepStatus is the derived display state of a single step.
type StepStatus string

const (
	StepStatusPending  StepStatus = "pending"
	StepStatusActive   StepStatus = "active"
	StepStatusComplete StepStatus = "complete"
	StepStatusError    StepStatus = "error"
)

// FlowState is a point-in-time snapshot of a flow's position. When Failed is
// set, Step holds the position the run failed at, not a terminal marker, so
// the derived display still pins the failure to the right step.
type FlowState struct {
	Step   Step   `json:"step"`
	Err    string `json:"error,omitempty"`
	Failed bool   `json:"failed,omitempty"`
}

// EVMFlowOrder is the step order of the adapter-based EVM-to-EVM flow when
// a Lockbox conversion is required.
var EVMFlowOrder = []Step{
	StepSwitchingChain,
	StepCheckingBalances,
	StepApprovingWPOKT,
	StepConvertingLockbox,
	StepApprovingXPOKT,
	StepBridging,
	StepWaitingRelay,
}

// EVMFlowOrderDirect is the variant without the conversion legs.
var EVMFlowOrderDirect = []Step{
	StepSwitchingChain,
	StepCheckingBalances,
	StepApprovingXPOKT,
	StepBridging,
	StepWaitingRelay,
}

// ToAltFlowOrder is the attestation-based EVM-to-alt-chain flow.
var ToAltFlowOrder = []Step{
	StepCheckingBalances,
	StepApprovingWPOKT,
	StepConvertingLockbox,
	StepInitiating,
	StepWaitingVAA,
	StepClaiming,
}

// FromAltFlowOrder is the alt-chain-to-EVM flow with the optional post-claim
// conversion legs.
var FromAltFlowOrder = []Step{
	StepInitiating,
	StepWaitingVAA,
	StepClaiming,
	StepApprovingLockbox,
	StepWithdrawingLockbox,
}

// DeriveStepStatuses maps the current step of a flow onto per-step display
// statuses over the variant's fixed order. When failed is set, the current
// step is shown as the failure point, earlier steps stay complete and later
// ones stay pending.
func DeriveStepStatuses(order []Step, current Step, failed bool) []StepStatus {
	statuses := make([]StepStatus, len(order))
	switch current {
	case StepIdle:
		for i := range statuses {
			statuses[i] = StepStatusPending
		}
		return statuses
	case StepComplete:
		for i := range statuses {
			statuses[i] = StepStatusComplete
		}
		return statuses
	}

	pos := len(order)
	for i, s := range order {
		if s == current {
			pos = i
			break
		}
	}
	// A step outside the order carries no position, so nothing can be
	// reported as done.
	if pos == len(order) {
		for i := range statuses {
			statuses[i] = StepStatusPending
		}
		return statuses
	}
	for i := range order {
		switch {
		case i < pos:
			statuses[i] = StepStatusComplete
		case i == pos && failed:
			statuses[i] = StepStatusError
		case i == pos:
			statuses[i] = StepStatusActive
		default:
			statuses[i] = StepStatusPending
		}
	}
	return statuses
}
