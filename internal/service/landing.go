package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"

	"github.com/klbk90/creative-optimizer-sub001/internal/geoip"
	"github.com/klbk90/creative-optimizer-sub001/internal/metrics"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
	"github.com/klbk90/creative-optimizer-sub001/internal/render"
	"github.com/klbk90/creative-optimizer-sub001/internal/repository"
	"github.com/klbk90/creative-optimizer-sub001/internal/useragent"
	"github.com/klbk90/creative-optimizer-sub001/internal/utm"
)

// Landing page errors.
var (
	ErrLandingNotFound      = errors.New("landing page not found")
	ErrInvalidTemplate      = errors.New("invalid template")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrMissingName          = errors.New("name is required")
	ErrMissingDomain        = errors.New("custom_domain is required")
	ErrInvalidRedirectDelay = errors.New("redirect_delay must be between 0 and 60 seconds")
	ErrSlugExists           = errors.New("slug already exists")
)

const (
	// UTMIDPlaceholder is replaced with the minted utm_id in redirect URLs.
	UTMIDPlaceholder = "{utm_id}"

	// PreviewUTMID stands in for a real utm_id in owner previews.
	PreviewUTMID = "preview"

	maxRedirectDelay = 60
	slugSuffixLength = 6
	maxSlugBaseLen   = 48
)

// LandingStore is the persistence needed by LandingService.
type LandingStore interface {
	CreateLandingPage(ctx context.Context, p *model.LandingPage) error
	GetLandingPage(ctx context.Context, id, userID string) (*model.LandingPage, error)
	GetLandingPageBySlugOrID(ctx context.Context, ref string) (*model.LandingPage, error)
	UpdateLandingPage(ctx context.Context, p *model.LandingPage) error
	DeleteLandingPage(ctx context.Context, id, userID string) error
	ListLandingPages(ctx context.Context, filter repository.LandingFilter, cursor string, limit int) ([]*model.LandingPage, string, error)
	RecordLandingView(ctx context.Context, pageID string, src *model.TrafficSource, at time.Time) (*model.LandingPage, error)
}

// PageRenderer turns page data into HTML.
type PageRenderer interface {
	Render(data render.PageData) ([]byte, error)
}

// LandingService manages landing pages and serves them publicly.
type LandingService struct {
	store       LandingStore
	renderer    PageRenderer
	geo         geoip.Resolver
	events      EventSink
	botUsername string
	logger      *slog.Logger
	metrics     metrics.Recorder
	now         func() time.Time
}

// NewLandingService creates a new LandingService.
func NewLandingService(store LandingStore, renderer PageRenderer, geo geoip.Resolver, sink EventSink, botUsername string, logger *slog.Logger, recorder metrics.Recorder) *LandingService {
	if geo == nil {
		geo = geoip.Noop{}
	}
	if sink == nil {
		sink = noopSink{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LandingService{
		store:       store,
		renderer:    renderer,
		geo:         geo,
		events:      sink,
		botUsername: botUsername,
		logger:      logger.With("component", "landing"),
		metrics:     recorder,
		now:         utcNow,
	}
}

// CreateLandingInput defines input for creating a landing page.
type CreateLandingInput struct {
	UserID        string
	Name          string
	Template      string
	Config        map[string]any
	UTMSource     string
	UTMMedium     string
	UTMCampaign   string
	RedirectURL   string
	RedirectDelay int
}

// Create stores a new draft landing page under a generated slug.
func (s *LandingService) Create(ctx context.Context, in CreateLandingInput) (*model.LandingPage, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrMissingName
	}
	tmpl := model.LandingTemplate(in.Template)
	if !tmpl.IsValid() {
		return nil, ErrInvalidTemplate
	}
	if strings.TrimSpace(in.UTMSource) == "" {
		return nil, ErrMissingSource
	}
	if strings.TrimSpace(in.UTMMedium) == "" {
		return nil, ErrMissingMedium
	}
	if err := validateRedirect(in.RedirectURL, in.RedirectDelay); err != nil {
		return nil, err
	}

	now := s.now()
	page := &model.LandingPage{
		ID:            newID(),
		UserID:        in.UserID,
		Name:          in.Name,
		Template:      tmpl,
		Slug:          Slugify(in.Name) + "-" + randomSuffix(slugSuffixLength),
		Config:        in.Config,
		UTMSource:     in.UTMSource,
		UTMMedium:     in.UTMMedium,
		UTMCampaign:   in.UTMCampaign,
		RedirectURL:   in.RedirectURL,
		RedirectDelay: in.RedirectDelay,
		Status:        model.LandingStatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if page.Config == nil {
		page.Config = map[string]any{}
	}

	if err := s.store.CreateLandingPage(ctx, page); err != nil {
		if errors.Is(err, repository.ErrSlugExists) {
			return nil, ErrSlugExists
		}
		return nil, fmt.Errorf("failed to create landing page: %w", err)
	}

	s.logger.Info("landing page created", "landing_id", page.ID, "slug", page.Slug, "template", page.Template)
	return page, nil
}

// Get retrieves one of the caller's landing pages.
func (s *LandingService) Get(ctx context.Context, id, userID string) (*model.LandingPage, error) {
	page, err := s.store.GetLandingPage(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrLandingNotFound) {
			return nil, ErrLandingNotFound
		}
		return nil, fmt.Errorf("failed to load landing page: %w", err)
	}
	return page, nil
}

// UpdateLandingInput defines input for updating a landing page. Nil fields
// are left unchanged.
type UpdateLandingInput struct {
	ID            string
	UserID        string
	Name          *string
	Template      *string
	Config        map[string]any
	UTMSource     *string
	UTMMedium     *string
	UTMCampaign   *string
	RedirectURL   *string
	RedirectDelay *int
}

// Update applies a partial update. Status is changed through SetStatus.
func (s *LandingService) Update(ctx context.Context, in UpdateLandingInput) (*model.LandingPage, error) {
	page, err := s.Get(ctx, in.ID, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, ErrMissingName
		}
		page.Name = *in.Name
	}
	if in.Template != nil {
		tmpl := model.LandingTemplate(*in.Template)
		if !tmpl.IsValid() {
			return nil, ErrInvalidTemplate
		}
		page.Template = tmpl
	}
	if in.Config != nil {
		page.Config = in.Config
	}
	if in.UTMSource != nil {
		if strings.TrimSpace(*in.UTMSource) == "" {
			return nil, ErrMissingSource
		}
		page.UTMSource = *in.UTMSource
	}
	if in.UTMMedium != nil {
		if strings.TrimSpace(*in.UTMMedium) == "" {
			return nil, ErrMissingMedium
		}
		page.UTMMedium = *in.UTMMedium
	}
	if in.UTMCampaign != nil {
		page.UTMCampaign = *in.UTMCampaign
	}
	if in.RedirectURL != nil {
		page.RedirectURL = *in.RedirectURL
	}
	if in.RedirectDelay != nil {
		page.RedirectDelay = *in.RedirectDelay
	}
	if err := validateRedirect(page.RedirectURL, page.RedirectDelay); err != nil {
		return nil, err
	}

	page.UpdatedAt = s.now()
	return page, s.save(ctx, page)
}

// ListLandingsInput defines input for listing landing pages.
type ListLandingsInput struct {
	UserID string
	Status string
	Cursor string
	Limit  int
}

// List retrieves the caller's landing pages, newest first.
func (s *LandingService) List(ctx context.Context, in ListLandingsInput) (*Page[*model.LandingPage], error) {
	status := model.LandingStatus(in.Status)
	if status != "" && !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	pages, next, err := s.store.ListLandingPages(ctx, repository.LandingFilter{
		UserID: in.UserID,
		Status: status,
	}, in.Cursor, clampLimit(in.Limit))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, fmt.Errorf("failed to list landing pages: %w", err)
	}
	return newPage(pages, next), nil
}

// Delete removes one of the caller's landing pages.
func (s *LandingService) Delete(ctx context.Context, id, userID string) error {
	if err := s.store.DeleteLandingPage(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrLandingNotFound) {
			return ErrLandingNotFound
		}
		return fmt.Errorf("failed to delete landing page: %w", err)
	}
	s.logger.Info("landing page deleted", "landing_id", id)
	return nil
}

// Deploy binds a custom domain to the page and activates it. The domain
// starts unverified.
func (s *LandingService) Deploy(ctx context.Context, id, userID, domain string) (*model.LandingPage, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, ErrMissingDomain
	}

	page, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if page.CustomDomain != domain {
		page.CustomDomain = domain
		page.DomainVerified = false
	}
	page.ApplyStatus(model.LandingStatusActive, s.now())

	if err := s.save(ctx, page); err != nil {
		return nil, err
	}
	s.logger.Info("landing page deployed", "landing_id", page.ID, "domain", domain)
	return page, nil
}

// SetStatus moves a page to status. Activating publishes it.
func (s *LandingService) SetStatus(ctx context.Context, id, userID, status string) (*model.LandingPage, error) {
	next := model.LandingStatus(status)
	if !next.IsValid() {
		return nil, ErrInvalidStatus
	}

	page, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	page.ApplyStatus(next, s.now())
	if err := s.save(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *LandingService) save(ctx context.Context, page *model.LandingPage) error {
	if err := s.store.UpdateLandingPage(ctx, page); err != nil {
		if errors.Is(err, repository.ErrLandingNotFound) {
			return ErrLandingNotFound
		}
		return fmt.Errorf("failed to update landing page: %w", err)
	}
	return nil
}

// RenderedPage is the result of a public or preview render.
type RenderedPage struct {
	HTML        []byte
	Page        *model.LandingPage
	UTMID       string
	RedirectURL string
}

// Render serves a public landing page. Each render mints a utm_id, stores
// a traffic source for it and counts a view. Pages that are missing or not
// active fail with ErrLandingNotFound and nothing is written.
func (s *LandingService) Render(ctx context.Context, slugOrID string, meta RequestMeta) (_ *RenderedPage, err error) {
	ctx, span := startSpan(ctx, "landing.Render", attribute.String("landing.ref", slugOrID))
	defer func() { endSpan(span, err) }()

	page, err := s.store.GetLandingPageBySlugOrID(ctx, slugOrID)
	if err != nil {
		if errors.Is(err, repository.ErrLandingNotFound) {
			return nil, ErrLandingNotFound
		}
		return nil, fmt.Errorf("failed to load landing page: %w", err)
	}
	if !page.IsActive() {
		return nil, ErrLandingNotFound
	}

	ua := useragent.Parse(meta.UserAgent)
	loc := s.geo.Lookup(ctx, meta.IP)

	var (
		utmID    string
		redirect string
		updated  *model.LandingPage
	)
	for attempt := 0; attempt < maxUTMIDAttempts; attempt++ {
		utmID = utm.GenerateID(page.UTMSource, page.UTMCampaign, "")
		redirect = s.redirectTarget(page, utmID)

		now := s.now()
		pageID := page.ID
		src := &model.TrafficSource{
			ID:            newID(),
			UserID:        page.UserID,
			UTMSource:     page.UTMSource,
			UTMMedium:     page.UTMMedium,
			UTMCampaign:   page.UTMCampaign,
			UTMID:         utmID,
			TargetURL:     redirect,
			LinkType:      model.LinkTypeLanding,
			DeviceType:    ua.DeviceType,
			Browser:       ua.Browser,
			OS:            ua.OS,
			Country:       loc.Country,
			City:          loc.City,
			LandingPageID: &pageID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		updated, err = s.store.RecordLandingView(ctx, page.ID, src, now)
		if errors.Is(err, repository.ErrUTMIDExists) {
			continue
		}
		break
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLandingNotFound):
			return nil, ErrLandingNotFound
		case errors.Is(err, repository.ErrUTMIDExists):
			return nil, ErrUTMIDCollision
		}
		return nil, fmt.Errorf("failed to record landing view: %w", err)
	}

	html, err := s.renderer.Render(render.NewPageData(updated, utmID, redirect, false))
	if err != nil {
		return nil, fmt.Errorf("failed to render landing page: %w", err)
	}

	s.metrics.IncLandingView(string(updated.Template))
	s.events.Dispatch(model.AttributionEvent{
		EventType:  model.EventTypePageView,
		EventID:    newID(),
		UTMID:      utmID,
		OccurredAt: s.now(),
		Data: map[string]any{
			"landing_page_id": updated.ID,
			"template":        string(updated.Template),
			"device_type":     ua.DeviceType,
			"country":         loc.Country,
		},
	})

	return &RenderedPage{HTML: html, Page: updated, UTMID: utmID, RedirectURL: redirect}, nil
}

// Preview renders one of the caller's pages regardless of status. Nothing
// is written.
func (s *LandingService) Preview(ctx context.Context, id, userID string) (*RenderedPage, error) {
	page, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	redirect := s.redirectTarget(page, PreviewUTMID)
	html, err := s.renderer.Render(render.NewPageData(page, PreviewUTMID, redirect, true))
	if err != nil {
		return nil, fmt.Errorf("failed to render landing page: %w", err)
	}
	return &RenderedPage{HTML: html, Page: page, UTMID: PreviewUTMID, RedirectURL: redirect}, nil
}

// redirectTarget substitutes utmID into the page's redirect URL, falling
// back to the bot deep link.
func (s *LandingService) redirectTarget(page *model.LandingPage, utmID string) string {
	if page.RedirectURL != "" {
		return strings.ReplaceAll(page.RedirectURL, UTMIDPlaceholder, url.QueryEscape(utmID))
	}
	if s.botUsername == "" {
		return ""
	}
	return TelegramStartURL(s.botUsername, utmID)
}

func validateRedirect(redirectURL string, delay int) error {
	if delay < 0 || delay > maxRedirectDelay {
		return ErrInvalidRedirectDelay
	}
	if redirectURL == "" {
		return nil
	}
	return validateURL(strings.ReplaceAll(redirectURL, UTMIDPlaceholder, "x"))
}

// Slugify lowercases name and joins its alphanumeric runs with hyphens.
func Slugify(name string) string {
	var sb strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
			hyphen = false
		case sb.Len() > 0 && !hyphen:
			sb.WriteByte('-')
			hyphen = true
		}
		if sb.Len() >= maxSlugBaseLen {
			break
		}
	}

	slug := strings.Trim(sb.String(), "-")
	if slug == "" {
		return "page"
	}
	return slug
}

func randomSuffix(n int) string {
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)[:n]
}
