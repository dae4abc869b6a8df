package services

import (
	"context"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/site"
	"github.com/agrovault/trialbase/pkg/eventbus"
)

type SiteService struct {
	repo      site.Repository
	publisher eventbus.EventBus
}

func NewSiteService(repo site.Repository, publisher eventbus.EventBus) *SiteService {
	return &SiteService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *SiteService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *SiteService) GetAll(ctx context.Context) ([]*site.Site, error) {
	return s.repo.GetAll(ctx)
}

func (s *SiteService) GetByID(ctx context.Context, id int64) (*site.Site, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *SiteService) Search(ctx context.Context, fragment string, limit int) ([]*site.Site, error) {
	return s.repo.Search(ctx, fragment, limit)
}

func (s *SiteService) Create(ctx context.Context, data *site.Site) (*site.Site, error) {
	created, err := s.repo.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish("site.created", created)
	return created, nil
}
