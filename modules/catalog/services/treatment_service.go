package services

import (
	"context"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/treatment"
	"github.com/agrovault/trialbase/pkg/eventbus"
)

type TreatmentService struct {
	repo      treatment.Repository
	publisher eventbus.EventBus
}

func NewTreatmentService(repo treatment.Repository, publisher eventbus.EventBus) *TreatmentService {
	return &TreatmentService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *TreatmentService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *TreatmentService) GetAll(ctx context.Context) ([]*treatment.Treatment, error) {
	return s.repo.GetAll(ctx)
}

func (s *TreatmentService) GetByID(ctx context.Context, id int64) (*treatment.Treatment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TreatmentService) Search(ctx context.Context, fragment string, limit int) ([]*treatment.Treatment, error) {
	return s.repo.Search(ctx, fragment, limit)
}

func (s *TreatmentService) Create(ctx context.Context, data *treatment.Treatment) (*treatment.Treatment, error) {
	created, err := s.repo.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish("treatment.created", created)
	return created, nil
}
