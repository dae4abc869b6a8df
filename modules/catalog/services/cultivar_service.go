package services

import (
	"context"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/cultivar"
	"github.com/agrovault/trialbase/pkg/eventbus"
)

type CultivarService struct {
	repo      cultivar.Repository
	publisher eventbus.EventBus
}

func NewCultivarService(repo cultivar.Repository, publisher eventbus.EventBus) *CultivarService {
	return &CultivarService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *CultivarService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *CultivarService) GetAll(ctx context.Context) ([]*cultivar.Cultivar, error) {
	return s.repo.GetAll(ctx)
}

func (s *CultivarService) GetByID(ctx context.Context, id int64) (*cultivar.Cultivar, error) {
	return s.repo.GetByID(ctx, id)
}

// Search narrows to one species when speciesID is non-zero.
func (s *CultivarService) Search(ctx context.Context, speciesID int64, fragment string, limit int) ([]*cultivar.Cultivar, error) {
	return s.repo.Search(ctx, speciesID, fragment, limit)
}

func (s *CultivarService) Create(ctx context.Context, data *cultivar.Cultivar) (*cultivar.Cultivar, error) {
	created, err := s.repo.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish("cultivar.created", created)
	return created, nil
}
