package dto

// ── 看板 DTO ──

// AdminDashboardResponse 管理员看板统计
type AdminDashboardResponse struct {
	StudentRecords     int64 `json:"student_records"`
	StudentAccounts    int64 `json:"student_accounts"`
	Supervisors        int64 `json:"supervisors"`
	Groups             int64 `json:"groups"`
	Activities         int64 `json:"activities"`
	SubmissionsPending int64 `json:"submissions_pending"`
	ProposalsPending   int64 `json:"proposals_pending"`
}

// SupervisorDashboardResponse 导师看板统计
type SupervisorDashboardResponse struct {
	Groups             int64 `json:"groups"`
	Activities         int64 `json:"activities"`
	SubmissionsPending int64 `json:"submissions_pending"`
	ProposalsPending   int64 `json:"proposals_pending"`
}
