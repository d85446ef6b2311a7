package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/klbk90/creative-optimizer-sub001/internal/model"
	"github.com/klbk90/creative-optimizer-sub001/internal/repository"
)

// Catalog errors.
var (
	ErrCreativeNotFound     = errors.New("creative not found")
	ErrInvalidCreativeType  = errors.New("invalid creative type")
	ErrInfluencerNotFound   = errors.New("influencer not found")
	ErrInfluencerExists     = errors.New("influencer already exists")
	ErrMissingHandle        = errors.New("handle is required")
	ErrMissingPlatform      = errors.New("platform is required")
	ErrInvalidEngagement    = errors.New("engagement_rate must be between 0 and 100")
	ErrInvalidFollowerCount = errors.New("followers must not be negative")
)

// CatalogStore is the persistence needed by CatalogService.
type CatalogStore interface {
	CreateCreative(ctx context.Context, c *model.Creative) error
	GetCreative(ctx context.Context, id, userID string) (*model.Creative, error)
	ListCreatives(ctx context.Context, filter repository.CreativeFilter, cursor string, limit int) ([]*model.Creative, string, error)
	ArchiveCreative(ctx context.Context, id, userID string, at time.Time) error
	CreateInfluencer(ctx context.Context, inf *model.Influencer) error
	ListInfluencers(ctx context.Context, filter repository.InfluencerFilter, cursor string, limit int) ([]*model.Influencer, string, error)
	UpdateInfluencerStatus(ctx context.Context, id, userID, status string, at time.Time) (*model.Influencer, error)
}

// CatalogService manages creatives and influencers that traffic sources
// are attributed to.
type CatalogService struct {
	store  CatalogStore
	logger *slog.Logger
	now    func() time.Time
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(store CatalogStore, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{
		store:  store,
		logger: logger.With("component", "catalog"),
		now:    utcNow,
	}
}

// CreateCreativeInput defines input for creating a creative.
type CreateCreativeInput struct {
	UserID       string
	Name         string
	CreativeType string
	MediaURL     string
	Hook         string
	Angle        string
}

// CreateCreative stores a new active creative.
func (s *CatalogService) CreateCreative(ctx context.Context, in CreateCreativeInput) (*model.Creative, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrMissingName
	}
	ct := model.CreativeType(in.CreativeType)
	if !ct.IsValid() {
		return nil, ErrInvalidCreativeType
	}
	if in.MediaURL != "" {
		if err := validateURL(in.MediaURL); err != nil {
			return nil, err
		}
	}

	now := s.now()
	c := &model.Creative{
		ID:           newID(),
		UserID:       in.UserID,
		Name:         in.Name,
		CreativeType: ct,
		MediaURL:     in.MediaURL,
		Hook:         in.Hook,
		Angle:        in.Angle,
		Status:       model.CreativeStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateCreative(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create creative: %w", err)
	}
	return c, nil
}

// GetCreative retrieves one of the caller's creatives.
func (s *CatalogService) GetCreative(ctx context.Context, id, userID string) (*model.Creative, error) {
	c, err := s.store.GetCreative(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCreativeNotFound) {
			return nil, ErrCreativeNotFound
		}
		return nil, fmt.Errorf("failed to load creative: %w", err)
	}
	return c, nil
}

// ListCreativesInput defines input for listing creatives.
type ListCreativesInput struct {
	UserID       string
	CreativeType string
	Status       string
	Cursor       string
	Limit        int
}

// ListCreatives retrieves the caller's creatives, newest first.
func (s *CatalogService) ListCreatives(ctx context.Context, in ListCreativesInput) (*Page[*model.Creative], error) {
	ct := model.CreativeType(in.CreativeType)
	if ct != "" && !ct.IsValid() {
		return nil, ErrInvalidCreativeType
	}

	items, next, err := s.store.ListCreatives(ctx, repository.CreativeFilter{
		UserID:       in.UserID,
		CreativeType: ct,
		Status:       in.Status,
	}, in.Cursor, clampLimit(in.Limit))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, fmt.Errorf("failed to list creatives: %w", err)
	}
	return newPage(items, next), nil
}

// ArchiveCreative archives one of the caller's creatives. Sources that
// reference it keep the reference.
func (s *CatalogService) ArchiveCreative(ctx context.Context, id, userID string) error {
	if err := s.store.ArchiveCreative(ctx, id, userID, s.now()); err != nil {
		if errors.Is(err, repository.ErrCreativeNotFound) {
			return ErrCreativeNotFound
		}
		return fmt.Errorf("failed to archive creative: %w", err)
	}
	return nil
}

// CreateInfluencerInput defines input for creating an influencer.
// EngagementRate is a percentage, e.g. 3.45.
type CreateInfluencerInput struct {
	UserID         string
	Handle         string
	Platform       string
	Email          string
	Followers      int64
	EngagementRate float64
	FunnelStatus   string
}

// CreateInfluencer stores a new influencer. The engagement rate is kept in
// basis points.
func (s *CatalogService) CreateInfluencer(ctx context.Context, in CreateInfluencerInput) (*model.Influencer, error) {
	handle := strings.TrimPrefix(strings.TrimSpace(in.Handle), "@")
	if handle == "" {
		return nil, ErrMissingHandle
	}
	platform := strings.ToLower(strings.TrimSpace(in.Platform))
	if platform == "" {
		return nil, ErrMissingPlatform
	}
	if in.Followers < 0 {
		return nil, ErrInvalidFollowerCount
	}
	if in.EngagementRate < 0 || in.EngagementRate > 100 {
		return nil, ErrInvalidEngagement
	}
	status := in.FunnelStatus
	if status == "" {
		status = model.FunnelProspect
	}
	if !model.IsValidFunnelStatus(status) {
		return nil, ErrInvalidFunnelStatus
	}

	now := s.now()
	inf := &model.Influencer{
		ID:               newID(),
		UserID:           in.UserID,
		Handle:           handle,
		Platform:         platform,
		Email:            strings.TrimSpace(in.Email),
		Followers:        in.Followers,
		EngagementRateBP: model.PercentToBasisPoints(in.EngagementRate),
		FunnelStatus:     status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateInfluencer(ctx, inf); err != nil {
		if errors.Is(err, repository.ErrInfluencerExists) {
			return nil, ErrInfluencerExists
		}
		return nil, fmt.Errorf("failed to create influencer: %w", err)
	}
	return inf, nil
}

// ListInfluencersInput defines input for listing influencers.
type ListInfluencersInput struct {
	UserID       string
	Platform     string
	FunnelStatus string
	Cursor       string
	Limit        int
}

// ListInfluencers retrieves the caller's influencers, newest first.
func (s *CatalogService) ListInfluencers(ctx context.Context, in ListInfluencersInput) (*Page[*model.Influencer], error) {
	if in.FunnelStatus != "" && !model.IsValidFunnelStatus(in.FunnelStatus) {
		return nil, ErrInvalidFunnelStatus
	}

	items, next, err := s.store.ListInfluencers(ctx, repository.InfluencerFilter{
		UserID:       in.UserID,
		Platform:     strings.ToLower(in.Platform),
		FunnelStatus: in.FunnelStatus,
	}, in.Cursor, clampLimit(in.Limit))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, fmt.Errorf("failed to list influencers: %w", err)
	}
	return newPage(items, next), nil
}

// UpdateInfluencerStatus moves an influencer through the outreach funnel.
func (s *CatalogService) UpdateInfluencerStatus(ctx context.Context, id, userID, status string) (*model.Influencer, error) {
	if !model.IsValidFunnelStatus(status) {
		return nil, ErrInvalidFunnelStatus
	}

	inf, err := s.store.UpdateInfluencerStatus(ctx, id, userID, status, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrInfluencerNotFound) {
			return nil, ErrInfluencerNotFound
		}
		return nil, fmt.Errorf("failed to update influencer: %w", err)
	}

	s.logger.Info("influencer status updated", "influencer_id", id, "funnel_status", status)
	return inf, nil
}
