package service

import (
	"context"

	"upms-teamup/backend/internal/dto"
	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
)

// buildGroupResponse 小组概览：成员、导师、已确定题目
func buildGroupResponse(ctx context.Context, repo *repository.Repository, groupCode string) (*dto.GroupResponse, error) {
	g, err := repo.Group.GetByCode(ctx, groupCode)
	if err != nil {
		return nil, notFound(err, "group", groupCode)
	}
	list, err := buildGroupResponses(ctx, repo, []model.Group{*g})
	if err != nil {
		return nil, err
	}
	return &list[0], nil
}

// buildGroupResponses 批量组装小组概览
func buildGroupResponses(ctx context.Context, repo *repository.Repository, groups []model.Group) ([]dto.GroupResponse, error) {
	result := make([]dto.GroupResponse, 0, len(groups))
	if len(groups) == 0 {
		return result, nil
	}

	codes := make([]string, 0, len(groups))
	for _, g := range groups {
		codes = append(codes, g.GroupCode)
	}

	assignments, err := repo.Assignment.ListByGroups(ctx, codes)
	if err != nil {
		return nil, err
	}
	supervisorOf := make(map[string]string, len(assignments))
	for _, a := range assignments {
		supervisorOf[a.GroupCode] = a.SupervisorID
	}

	names := map[string]string{}
	if len(assignments) > 0 {
		supervisors, err := repo.Principal.ListSupervisors(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range supervisors {
			name := p.Username
			if p.SupervisorProfile != nil && p.SupervisorProfile.Name != "" {
				name = p.SupervisorProfile.Name
			}
			names[p.PrincipalID] = name
		}
	}

	approved, err := repo.Title.ListProposals(ctx, repository.ProposalFilter{
		GroupCodes:  codes,
		StatusAdmin: model.DecisionApproved,
	})
	if err != nil {
		return nil, err
	}
	finalTitle := make(map[string]string)
	for i := range approved {
		if approved[i].Final() {
			finalTitle[approved[i].GroupCode] = approved[i].Title
		}
	}

	for _, g := range groups {
		resp := dto.GroupResponse{
			GroupCode:  g.GroupCode,
			CreatedAt:  dto.FormatTime(g.CreatedAt),
			Members:    make([]dto.GroupMemberResponse, 0, len(g.Members)),
			FinalTitle: finalTitle[g.GroupCode],
		}
		if sid, ok := supervisorOf[g.GroupCode]; ok {
			resp.SupervisorID = sid
			resp.SupervisorName = names[sid]
		}
		for _, m := range g.Members {
			member := dto.GroupMemberResponse{
				StudentID: m.StudentID,
				JoinedAt:  dto.FormatTime(m.JoinedAt),
			}
			if m.Student != nil {
				member.Name = m.Student.Name
				member.Email = m.Student.Email
			}
			resp.Members = append(resp.Members, member)
		}
		result = append(result, resp)
	}
	return result, nil
}
