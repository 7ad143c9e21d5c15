package service

// TransitionRecorder 状态迁移计数
type TransitionRecorder interface {
	Transition(machine, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) Transition(string, string) {}

func recorderOrNoop(r TransitionRecorder) TransitionRecorder {
	if r == nil {
		return noopRecorder{}
	}
	return r
}

// 状态机名称
const (
	machineTeamRequest = "team_request"
	machineMembership  = "membership"
	machineAssignment  = "supervisor_assignment"
	machineTitle       = "title_proposal"
	machineWindow      = "title_window"
	machineActivity    = "activity"
	machineSubmission  = "submission"
	machineAccount     = "account"
)
