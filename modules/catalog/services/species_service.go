package services

import (
	"context"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/species"
	"github.com/agrovault/trialbase/pkg/eventbus"
)

type SpeciesService struct {
	repo      species.Repository
	publisher eventbus.EventBus
}

func NewSpeciesService(repo species.Repository, publisher eventbus.EventBus) *SpeciesService {
	return &SpeciesService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *SpeciesService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *SpeciesService) GetAll(ctx context.Context) ([]*species.Species, error) {
	return s.repo.GetAll(ctx)
}

func (s *SpeciesService) GetByID(ctx context.Context, id int64) (*species.Species, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *SpeciesService) Search(ctx context.Context, fragment string, limit int) ([]*species.Species, error) {
	return s.repo.Search(ctx, fragment, limit)
}

func (s *SpeciesService) Create(ctx context.Context, data *species.Species) (*species.Species, error) {
	created, err := s.repo.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish("species.created", created)
	return created, nil
}
