package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/klbk90/creative-optimizer-sub001/internal/events"
	"github.com/klbk90/creative-optimizer-sub001/internal/geoip"
	"github.com/klbk90/creative-optimizer-sub001/internal/metrics"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
	"github.com/klbk90/creative-optimizer-sub001/internal/repository"
	"github.com/klbk90/creative-optimizer-sub001/internal/useragent"
	"github.com/klbk90/creative-optimizer-sub001/internal/utm"
)

// Attribution errors.
var (
	ErrInvalidLinkType     = errors.New("invalid link type")
	ErrMissingSource       = errors.New("source is required")
	ErrMissingMedium       = errors.New("medium is required")
	ErrMissingBaseURL      = errors.New("base_url is required for direct links")
	ErrMissingUTMID        = errors.New("utm_id is required")
	ErrMissingReference    = errors.New("traffic_source_id or utm_id is required")
	ErrMissingConvType     = errors.New("conversion_type is required")
	ErrInvalidAmount       = errors.New("amount must not be negative")
	ErrInvalidCurrency     = errors.New("currency must be a 3-letter ISO 4217 code")
	ErrInvalidFunnelStatus = errors.New("invalid funnel status")
	ErrSourceNotFound      = errors.New("traffic source not found")
	ErrNoRedirectTarget    = errors.New("traffic source has no redirect target")
	ErrUTMIDCollision      = errors.New("could not mint a unique utm_id")
)

// recentConversionsLimit is how many conversions GetSource returns inline.
const recentConversionsLimit = 5

// AttributionStore is the persistence needed by AttributionService.
type AttributionStore interface {
	CreateTrafficSource(ctx context.Context, src *model.TrafficSource) error
	GetTrafficSourceByUTMID(ctx context.Context, utmID, userID string) (*model.TrafficSource, error)
	RecordClick(ctx context.Context, utmID string, at time.Time, enrich *model.ClickEnrichment) (*model.TrafficSource, error)
	RecordConversion(ctx context.Context, ref repository.SourceRef, conv *model.Conversion) (*model.TrafficSource, error)
	ListTrafficSources(ctx context.Context, filter repository.SourceFilter, cursor string, limit int) ([]*model.TrafficSource, string, error)
	ListConversions(ctx context.Context, filter repository.ConversionFilter, cursor string, limit int) ([]*model.Conversion, string, error)
	GetConversionSummary(ctx context.Context, trafficSourceID string) (*model.ConversionSummary, error)
	GetCreative(ctx context.Context, id, userID string) (*model.Creative, error)
}

// AttributionConfig holds the URLs links are built against.
type AttributionConfig struct {
	// LandingBaseURL prefixes landing-type links: {LandingBaseURL}/{utm_id}.
	LandingBaseURL string
	// BotUsername is the Telegram bot used when a source has no target URL.
	BotUsername string
}

// AttributionService issues tracking links and records clicks and conversions.
type AttributionService struct {
	store   AttributionStore
	geo     geoip.Resolver
	events  EventSink
	cfg     AttributionConfig
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewAttributionService creates a new AttributionService.
func NewAttributionService(store AttributionStore, geo geoip.Resolver, sink EventSink, cfg AttributionConfig, logger *slog.Logger, recorder metrics.Recorder) *AttributionService {
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
	cfg.LandingBaseURL = strings.TrimSuffix(cfg.LandingBaseURL, "/")
	return &AttributionService{
		store:   store,
		geo:     geo,
		events:  sink,
		cfg:     cfg,
		logger:  logger.With("component", "attribution"),
		metrics: recorder,
		now:     utcNow,
	}
}

// GenerateLinkInput defines input for generating a tracking link.
type GenerateLinkInput struct {
	UserID     string
	Source     string
	Medium     string
	Campaign   string
	Content    string
	Term       string
	BaseURL    string
	LinkType   string
	CreativeID string
	Influencer *model.InfluencerAttribution
}

// GeneratedLink is a persisted traffic source and its shareable URL.
type GeneratedLink struct {
	URL    string
	Source *model.TrafficSource
}

// GenerateLink validates the input, builds the tracking URL and persists
// exactly one traffic source with zero counters.
func (s *AttributionService) GenerateLink(ctx context.Context, in GenerateLinkInput) (_ *GeneratedLink, err error) {
	ctx, span := startSpan(ctx, "attribution.GenerateLink",
		attribute.String("utm.source", in.Source),
		attribute.String("link.type", in.LinkType),
	)
	defer func() { endSpan(span, err) }()

	linkType := model.LinkType(in.LinkType)
	if err := s.validateGenerate(in, linkType); err != nil {
		return nil, err
	}

	var creativeID *string
	if in.CreativeID != "" {
		if _, err := s.store.GetCreative(ctx, in.CreativeID, in.UserID); err != nil {
			if errors.Is(err, repository.ErrCreativeNotFound) {
				return nil, ErrCreativeNotFound
			}
			return nil, fmt.Errorf("failed to load creative: %w", err)
		}
		creativeID = &in.CreativeID
	}

	for attempt := 0; attempt < maxUTMIDAttempts; attempt++ {
		utmID := utm.GenerateID(in.Source, in.Campaign, in.Content)

		link, err := utm.BuildLink(utm.LinkParams{
			BaseURL:        in.BaseURL,
			LandingBaseURL: s.cfg.LandingBaseURL,
			LinkType:       linkType,
			UTMID:          utmID,
			Source:         in.Source,
			Medium:         in.Medium,
			Campaign:       in.Campaign,
			Content:        in.Content,
			Term:           in.Term,
		})
		if err != nil {
			return nil, ErrInvalidLinkType
		}

		now := s.now()
		src := &model.TrafficSource{
			ID:          newID(),
			UserID:      in.UserID,
			UTMSource:   in.Source,
			UTMMedium:   in.Medium,
			UTMCampaign: in.Campaign,
			UTMContent:  in.Content,
			UTMTerm:     in.Term,
			UTMID:       utmID,
			TargetURL:   in.BaseURL,
			LinkType:    linkType,
			Influencer:  in.Influencer,
			CreativeID:  creativeID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		err = s.store.CreateTrafficSource(ctx, src)
		if errors.Is(err, repository.ErrUTMIDExists) {
			s.logger.Warn("utm_id collision, regenerating", "utm_id", utmID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			if errors.Is(err, repository.ErrInvalidReference) {
				return nil, ErrCreativeNotFound
			}
			return nil, fmt.Errorf("failed to create traffic source: %w", err)
		}

		s.metrics.IncLinkGenerated(string(linkType))
		span.SetAttributes(attribute.String("utm.id", utmID))
		return &GeneratedLink{URL: link, Source: src}, nil
	}

	return nil, ErrUTMIDCollision
}

func (s *AttributionService) validateGenerate(in GenerateLinkInput, linkType model.LinkType) error {
	if !linkType.IsValid() {
		return ErrInvalidLinkType
	}
	if strings.TrimSpace(in.Source) == "" {
		return ErrMissingSource
	}
	if strings.TrimSpace(in.Medium) == "" {
		return ErrMissingMedium
	}
	if in.BaseURL == "" {
		if linkType == model.LinkTypeDirect {
			return ErrMissingBaseURL
		}
	} else if err := validateURL(in.BaseURL); err != nil {
		return err
	}
	if in.Influencer != nil && in.Influencer.FunnelStatus != "" && !model.IsValidFunnelStatus(in.Influencer.FunnelStatus) {
		return ErrInvalidFunnelStatus
	}
	return nil
}

// TrackClickInput defines input for tracking a click.
type TrackClickInput struct {
	UTMID       string
	LandingPage string
	RequestMeta
}

// TrackClick increments the click counter of the source. Device, browser,
// OS and location are captured on the first click only; an unknown utm_id
// fails with ErrSourceNotFound and writes nothing.
func (s *AttributionService) TrackClick(ctx context.Context, in TrackClickInput) (_ *model.TrafficSource, err error) {
	ctx, span := startSpan(ctx, "attribution.TrackClick", attribute.String("utm.id", in.UTMID))
	defer func() { endSpan(span, err) }()

	if in.UTMID == "" {
		return nil, ErrMissingUTMID
	}

	existing, err := s.store.GetTrafficSourceByUTMID(ctx, in.UTMID, "")
	if err != nil {
		if errors.Is(err, repository.ErrSourceNotFound) {
			s.metrics.IncClickTracked(metrics.ClickNotFound)
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to load traffic source: %w", err)
	}

	// Enrichment is only applied on the first click; skip the GeoIP
	// lookup for sources that already have one.
	var enrich *model.ClickEnrichment
	if !existing.HasFirstClick() {
		enrich = s.enrich(ctx, in.RequestMeta)
	}

	at := s.now()
	src, err := s.store.RecordClick(ctx, in.UTMID, at, enrich)
	if err != nil {
		if errors.Is(err, repository.ErrSourceNotFound) {
			s.metrics.IncClickTracked(metrics.ClickNotFound)
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to record click: %w", err)
	}

	first := src.FirstClick != nil && src.FirstClick.Equal(at)
	if first {
		s.metrics.IncClickTracked(metrics.ClickFirst)
	} else {
		s.metrics.IncClickTracked(metrics.ClickRepeat)
	}

	s.events.Dispatch(model.AttributionEvent{
		EventType:       model.EventTypeClick,
		EventID:         newID(),
		UTMID:           src.UTMID,
		TrafficSourceID: src.ID,
		OccurredAt:      at,
		Data: map[string]any{
			"first_click":     first,
			"clicks":          src.Clicks,
			"landing_page":    in.LandingPage,
			"referrer":        events.SanitizeReferrer(in.Referrer),
			"referrer_domain": events.ReferrerDomain(in.Referrer),
			"visitor_hash":    events.VisitorHash(in.IP, in.UserAgent, at),
			"device_type":     src.DeviceType,
			"country":         src.Country,
		},
	})

	return src, nil
}

// enrich classifies the user agent and resolves the IP location. Failures
// degrade to empty values.
func (s *AttributionService) enrich(ctx context.Context, meta RequestMeta) *model.ClickEnrichment {
	ua := useragent.Parse(meta.UserAgent)
	loc := s.geo.Lookup(ctx, meta.IP)
	return &model.ClickEnrichment{
		DeviceType: ua.DeviceType,
		Browser:    ua.Browser,
		OS:         ua.OS,
		Country:    loc.Country,
		City:       loc.City,
	}
}

// ResolveRedirect tracks a click on a landing-type link and returns the
// destination the visitor should be sent to.
func (s *AttributionService) ResolveRedirect(ctx context.Context, in TrackClickInput) (string, error) {
	src, err := s.TrackClick(ctx, in)
	if err != nil {
		return "", err
	}

	if src.TargetURL == "" {
		if s.cfg.BotUsername == "" {
			return "", ErrNoRedirectTarget
		}
		return TelegramStartURL(s.cfg.BotUsername, src.UTMID), nil
	}

	// Sources minted by a landing view store the final destination with
	// the utm_id already applied.
	if src.LandingPageID != nil {
		return src.TargetURL, nil
	}

	// Build the direct form of the link against its stored target: bot
	// links get start=, everything else the UTM parameters.
	return utm.BuildLink(utm.LinkParams{
		BaseURL:  src.TargetURL,
		LinkType: model.LinkTypeDirect,
		UTMID:    src.UTMID,
		Source:   src.UTMSource,
		Medium:   src.UTMMedium,
		Campaign: src.UTMCampaign,
		Content:  src.UTMContent,
		Term:     src.UTMTerm,
	})
}

// TelegramStartURL is the deep link that opens bot with utmID as payload.
func TelegramStartURL(bot, utmID string) string {
	return "https://t.me/" + strings.TrimPrefix(bot, "@") + "?start=" + url.QueryEscape(utmID)
}

// ConversionRef identifies the traffic source a conversion belongs to.
// Authenticated callers reference a source by ID within their own account;
// webhook callers reference it by utm_id.
type ConversionRef struct {
	TrafficSourceID string
	UserID          string
	UTMID           string
}

// ByTrafficSource references a source by ID, scoped to its owner.
func ByTrafficSource(id, userID string) ConversionRef {
	return ConversionRef{TrafficSourceID: id, UserID: userID}
}

// ByUTMID references a source by its public utm_id.
func ByUTMID(utmID string) ConversionRef {
	return ConversionRef{UTMID: utmID}
}

// ByOwnedUTMID references a source by utm_id within the owner's account.
func ByOwnedUTMID(utmID, userID string) ConversionRef {
	return ConversionRef{UTMID: utmID, UserID: userID}
}

func (r ConversionRef) channel() string {
	if r.UserID == "" {
		return metrics.ChannelWebhook
	}
	return metrics.ChannelAPI
}

// ConversionInput holds the details of a conversion.
type ConversionInput struct {
	ConversionType string
	CustomerID     string
	Amount         int64
	Currency       string
	ProductID      string
	ProductName    string
	Metadata       map[string]any
}

// RecordConversion stores a conversion and updates the parent source's
// conversion and revenue counters in one transaction. Duplicate calls are
// not deduplicated.
func (s *AttributionService) RecordConversion(ctx context.Context, ref ConversionRef, in ConversionInput) (_ *model.Conversion, err error) {
	ctx, span := startSpan(ctx, "attribution.RecordConversion",
		attribute.String("conversion.channel", ref.channel()),
		attribute.String("conversion.type", in.ConversionType),
	)
	defer func() { endSpan(span, err) }()

	if ref.UTMID == "" && ref.TrafficSourceID == "" {
		return nil, ErrMissingReference
	}
	if strings.TrimSpace(in.ConversionType) == "" {
		return nil, ErrMissingConvType
	}
	if in.Amount < 0 {
		return nil, ErrInvalidAmount
	}
	currency := model.NormalizeCurrency(in.Currency)
	if !isCurrencyCode(currency) {
		return nil, ErrInvalidCurrency
	}

	conv := &model.Conversion{
		ID:             newID(),
		ConversionType: in.ConversionType,
		CustomerID:     in.CustomerID,
		Amount:         in.Amount,
		Currency:       currency,
		ProductID:      in.ProductID,
		ProductName:    in.ProductName,
		Metadata:       in.Metadata,
		CreatedAt:      s.now(),
	}

	src, err := s.store.RecordConversion(ctx, repository.SourceRef{
		ID:     ref.TrafficSourceID,
		UserID: ref.UserID,
		UTMID:  ref.UTMID,
	}, conv)
	if err != nil {
		if errors.Is(err, repository.ErrSourceNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to record conversion: %w", err)
	}

	s.metrics.IncConversionRecorded(ref.channel())
	s.metrics.AddRevenue(conv.Currency, conv.Amount)

	s.events.Dispatch(model.AttributionEvent{
		EventType:       model.EventTypeConversion,
		EventID:         conv.ID,
		UTMID:           conv.UTMID,
		TrafficSourceID: conv.TrafficSourceID,
		OccurredAt:      conv.CreatedAt,
		Data: map[string]any{
			"conversion_type":    conv.ConversionType,
			"amount":             conv.Amount,
			"currency":           conv.Currency,
			"product_id":         conv.ProductID,
			"time_to_conversion": conv.TimeToConversion,
			"source_revenue":     src.Revenue,
			"source_conversions": src.Conversions,
		},
	})

	s.logger.Info("conversion recorded",
		"utm_id", conv.UTMID,
		"channel", ref.channel(),
		"amount", conv.Amount,
		"currency", conv.Currency,
	)
	return conv, nil
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// ListSourcesInput defines input for listing traffic sources.
type ListSourcesInput struct {
	UserID        string
	UTMSource     string
	UTMCampaign   string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Cursor        string
	Limit         int
}

// ListSources retrieves the caller's traffic sources, newest first.
func (s *AttributionService) ListSources(ctx context.Context, in ListSourcesInput) (*Page[*model.TrafficSource], error) {
	sources, next, err := s.store.ListTrafficSources(ctx, repository.SourceFilter{
		UserID:        in.UserID,
		UTMSource:     in.UTMSource,
		UTMCampaign:   in.UTMCampaign,
		CreatedAfter:  in.CreatedAfter,
		CreatedBefore: in.CreatedBefore,
	}, in.Cursor, clampLimit(in.Limit))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, fmt.Errorf("failed to list traffic sources: %w", err)
	}
	return newPage(sources, next), nil
}

// SourceDetail is a traffic source with its conversion rollup.
type SourceDetail struct {
	Source            *model.TrafficSource
	Summary           *model.ConversionSummary
	RecentConversions []*model.Conversion
}

// GetSource loads one of the caller's sources by utm_id together with its
// conversion summary and latest conversions.
func (s *AttributionService) GetSource(ctx context.Context, userID, utmID string) (_ *SourceDetail, err error) {
	ctx, span := startSpan(ctx, "attribution.GetSource", attribute.String("utm.id", utmID))
	defer func() { endSpan(span, err) }()

	src, err := s.store.GetTrafficSourceByUTMID(ctx, utmID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSourceNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to load traffic source: %w", err)
	}

	detail := &SourceDetail{Source: src}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := s.store.GetConversionSummary(gctx, src.ID)
		if err != nil {
			return fmt.Errorf("failed to load conversion summary: %w", err)
		}
		detail.Summary = summary
		return nil
	})
	g.Go(func() error {
		recent, _, err := s.store.ListConversions(gctx, repository.ConversionFilter{
			UserID:          userID,
			TrafficSourceID: src.ID,
		}, "", recentConversionsLimit)
		if err != nil {
			return fmt.Errorf("failed to load recent conversions: %w", err)
		}
		detail.RecentConversions = recent
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return detail, nil
}

// ListConversionsInput defines input for listing conversions.
type ListConversionsInput struct {
	UserID          string
	TrafficSourceID string
	UTMID           string
	UTMSource       string
	UTMCampaign     string
	ConversionType  string
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
	Cursor          string
	Limit           int
}

// ListConversions retrieves conversions on the caller's sources.
func (s *AttributionService) ListConversions(ctx context.Context, in ListConversionsInput) (*Page[*model.Conversion], error) {
	conversions, next, err := s.store.ListConversions(ctx, repository.ConversionFilter{
		UserID:          in.UserID,
		TrafficSourceID: in.TrafficSourceID,
		UTMID:           in.UTMID,
		UTMSource:       in.UTMSource,
		UTMCampaign:     in.UTMCampaign,
		ConversionType:  in.ConversionType,
		CreatedAfter:    in.CreatedAfter,
		CreatedBefore:   in.CreatedBefore,
	}, in.Cursor, clampLimit(in.Limit))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	return newPage(conversions, next), nil
}
