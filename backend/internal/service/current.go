package service

import (
	"sort"

	"upms-teamup/backend/internal/model"
)

// ── 当前记录视图 ──
//
// 同一小组可能累积多条题目申报，同一选题窗口会追加多条配置，
// 流程判断一律基于“按时间取最新一条”的派生视图。

// currentProposal 小组当前申报：submitted_at 最新者，时间相同时按 ID 取较大者
func currentProposal(list []model.TitleProposal) *model.TitleProposal {
	var cur *model.TitleProposal
	for i := range list {
		p := &list[i]
		if cur == nil ||
			p.SubmittedAt.After(cur.SubmittedAt) ||
			(p.SubmittedAt.Equal(cur.SubmittedAt) && p.ProposalID > cur.ProposalID) {
			cur = p
		}
	}
	return cur
}

// finalProposal 小组已最终确定的题目
func finalProposal(list []model.TitleProposal) *model.TitleProposal {
	for i := range list {
		if list[i].Final() {
			return &list[i]
		}
	}
	return nil
}

// sortProposalsDesc 按提交时间倒序
func sortProposalsDesc(list []model.TitleProposal) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].SubmittedAt.Equal(list[j].SubmittedAt) {
			return list[i].ProposalID > list[j].ProposalID
		}
		return list[i].SubmittedAt.After(list[j].SubmittedAt)
	})
}

// windowOpen 当前窗口是否开放；从未配置视为关闭
func windowOpen(w *model.TitleSelectionWindow) bool {
	return w != nil && w.IsOpen
}
