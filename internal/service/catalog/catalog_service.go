// Package catalog serves the read-only reference data reservations are booked
// against, with an optional cache-aside layer in front of the repository.
package catalog

import (
	"context"
	"fmt"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/rs/zerolog"
)

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

type CatalogService struct {
	repo   repository.CatalogRepository
	cache  Cache
	logger zerolog.Logger
}

// NewCatalogService wraps repo. A nil cache reads straight through.
func NewCatalogService(repo repository.CatalogRepository, cache Cache, logger zerolog.Logger) *CatalogService {
	return &CatalogService{repo: repo, cache: cache, logger: logger.With().Str("component", "catalog").Logger()}
}

func cached[T any](ctx context.Context, s *CatalogService, key string, load func() (T, error)) (T, error) {
	if s.cache != nil {
		var hit T
		ok, err := s.cache.Get(ctx, key, &hit)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
		} else if ok {
			return hit, nil
		}
	}

	value, err := load()
	if err != nil {
		return value, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, value); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
		}
	}
	return value, nil
}

func (s *CatalogService) GetHotel(ctx context.Context, id int64) (*domain.Hotel, error) {
	return cached(ctx, s, fmt.Sprintf("catalog:hotel:%d", id), func() (*domain.Hotel, error) {
		return s.repo.GetHotel(ctx, id)
	})
}

func (s *CatalogService) GetRoomType(ctx context.Context, id int64) (*domain.RoomType, error) {
	return cached(ctx, s, fmt.Sprintf("catalog:room_type:%d", id), func() (*domain.RoomType, error) {
		return s.repo.GetRoomType(ctx, id)
	})
}

func (s *CatalogService) ListActiveRooms(ctx context.Context, roomTypeID int64) ([]domain.Room, error) {
	return cached(ctx, s, fmt.Sprintf("catalog:room_type:%d:rooms", roomTypeID), func() ([]domain.Room, error) {
		return s.repo.ListActiveRooms(ctx, roomTypeID)
	})
}

func (s *CatalogService) GetActivity(ctx context.Context, id int64) (*domain.Activity, error) {
	return cached(ctx, s, fmt.Sprintf("catalog:activity:%d", id), func() (*domain.Activity, error) {
		return s.repo.GetActivity(ctx, id)
	})
}

// GetSchedule always reads the repository; schedules change as slots are managed.
func (s *CatalogService) GetSchedule(ctx context.Context, id int64) (*domain.ActivitySchedule, error) {
	return s.repo.GetSchedule(ctx, id)
}

func (s *CatalogService) GetPackage(ctx context.Context, id int64) (*domain.Package, error) {
	return cached(ctx, s, fmt.Sprintf("catalog:package:%d", id), func() (*domain.Package, error) {
		return s.repo.GetPackage(ctx, id)
	})
}

var _ repository.CatalogRepository = (*CatalogService)(nil)
