package services

import (
	"context"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/citation"
	"github.com/agrovault/trialbase/pkg/eventbus"
)

type CitationService struct {
	repo      citation.Repository
	publisher eventbus.EventBus
}

func NewCitationService(repo citation.Repository, publisher eventbus.EventBus) *CitationService {
	return &CitationService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *CitationService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *CitationService) GetAll(ctx context.Context) ([]*citation.Citation, error) {
	return s.repo.GetAll(ctx)
}

func (s *CitationService) GetByID(ctx context.Context, id int64) (*citation.Citation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *CitationService) GetByDOI(ctx context.Context, doi string) (*citation.Citation, error) {
	return s.repo.FindByDOI(ctx, doi)
}

func (s *CitationService) Search(ctx context.Context, fragment string, limit int) ([]*citation.Citation, error) {
	return s.repo.Search(ctx, fragment, limit)
}

func (s *CitationService) Create(ctx context.Context, data *citation.Citation) (*citation.Citation, error) {
	created, err := s.repo.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish("citation.created", created)
	return created, nil
}
