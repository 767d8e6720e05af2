package service

import (
	"context"
	"fmt"

	"github.com/sakif/agrilink/internal/model"
	"github.com/sakif/agrilink/internal/repository"
)

type DashboardService struct {
	repo repository.DashboardRepository
}

func NewDashboardService(repo repository.DashboardRepository) *DashboardService {
	return &DashboardService{repo: repo}
}

func (s *DashboardService) Summary(ctx context.Context, userID string) (*model.DashboardSummary, error) {
	sum, err := s.repo.DashboardSummary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/dashboard: summary for %s: %w", userID, err)
	}
	return sum, nil
}
