package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/civicportal/internal/database"
	"github.com/ds124wfegd/civicportal/internal/entity"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	catalogCacheExpiration = 5 * time.Minute
	catalogCacheCleanup    = 10 * time.Minute
)

// catalogService reads resources and venues through a short-lived cache.
// Catalog rows do not change while registration is open, so a stale entry
// can only lag a Seed by at most the expiration.
type catalogService struct {
	repo  database.CatalogRepository
	cache *gocache.Cache
	log   logrus.FieldLogger
}

func NewCatalogService(repo database.CatalogRepository, log logrus.FieldLogger) CatalogService {
	return &catalogService{
		repo:  repo,
		cache: gocache.New(catalogCacheExpiration, catalogCacheCleanup),
		log:   log,
	}
}

func (s *catalogService) GetResource(ctx context.Context, id string) (*entity.Resource, error) {
	key := "resource:" + id
	if v, found := s.cache.Get(key); found {
		if r, ok := v.(entity.Resource); ok {
			return &r, nil
		}
		s.log.WithField("key", key).Error("Wrong type in catalog cache")
	}

	r, err := s.repo.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, *r)
	return r, nil
}

func (s *catalogService) ListResources(ctx context.Context) ([]*entity.Resource, error) {
	return s.repo.ListResources(ctx)
}

func (s *catalogService) GetVenue(ctx context.Context, name string) (*entity.Venue, error) {
	key := "venue:" + name
	if v, found := s.cache.Get(key); found {
		if venue, ok := v.(entity.Venue); ok {
			return &venue, nil
		}
		s.log.WithField("key", key).Error("Wrong type in catalog cache")
	}

	venue, err := s.repo.GetVenue(ctx, name)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, *venue)
	return venue, nil
}

func (s *catalogService) ListVenues(ctx context.Context) ([]*entity.Venue, error) {
	return s.repo.ListVenues(ctx)
}

// Seed upserts the configured catalog and drops every cached entry.
func (s *catalogService) Seed(ctx context.Context, resources []entity.Resource, venues []entity.Venue) error {
	defer s.cache.Flush()

	for i := range resources {
		r := resources[i]
		if err := s.repo.UpsertResource(ctx, &r); err != nil {
			return fmt.Errorf("seed resource %s: %w", r.ID, err)
		}
	}
	for i := range venues {
		v := venues[i]
		if err := s.repo.UpsertVenue(ctx, &v); err != nil {
			return fmt.Errorf("seed venue %s: %w", v.Name, err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"resources": len(resources),
		"venues":    len(venues),
	}).Info("Catalog seeded")
	return nil
}
