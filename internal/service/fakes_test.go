package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/klbk90/creative-optimizer-sub001/internal/geoip"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
	"github.com/klbk90/creative-optimizer-sub001/internal/repository"
)

// memStore is an in-memory implementation of the service stores with the
// same counter semantics as the Postgres repository.
type memStore struct {
	mu          sync.Mutex
	sources     map[string]*model.TrafficSource // by utm_id
	conversions []*model.Conversion
	pages       map[string]*model.LandingPage
	creatives   map[string]*model.Creative
	influencers map[string]*model.Influencer

	writes          int
	utmCollisions   int // number of upcoming inserts to reject as duplicates
	summaryRequests int
}

func newMemStore() *memStore {
	return &memStore{
		sources:     map[string]*model.TrafficSource{},
		pages:       map[string]*model.LandingPage{},
		creatives:   map[string]*model.Creative{},
		influencers: map[string]*model.Influencer{},
	}
}

func (m *memStore) source(utmID string) *model.TrafficSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[utmID]
	if !ok {
		return nil
	}
	cp := *src
	return &cp
}

func (m *memStore) insertSource(src *model.TrafficSource) error {
	if m.utmCollisions > 0 {
		m.utmCollisions--
		return repository.ErrUTMIDExists
	}
	if _, ok := m.sources[src.UTMID]; ok {
		return repository.ErrUTMIDExists
	}
	cp := *src
	m.sources[src.UTMID] = &cp
	m.writes++
	return nil
}

func (m *memStore) CreateTrafficSource(_ context.Context, src *model.TrafficSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertSource(src)
}

func (m *memStore) GetTrafficSourceByUTMID(_ context.Context, utmID, userID string) (*model.TrafficSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[utmID]
	if !ok || (userID != "" && src.UserID != userID) {
		return nil, repository.ErrSourceNotFound
	}
	cp := *src
	return &cp, nil
}

func (m *memStore) RecordClick(_ context.Context, utmID string, at time.Time, enrich *model.ClickEnrichment) (*model.TrafficSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[utmID]
	if !ok {
		return nil, repository.ErrSourceNotFound
	}
	src.Clicks++
	src.LastClick = &at
	if src.FirstClick == nil {
		src.FirstClick = &at
		if enrich != nil {
			src.DeviceType = enrich.DeviceType
			src.Browser = enrich.Browser
			src.OS = enrich.OS
			src.Country = enrich.Country
			src.City = enrich.City
		}
	}
	if src.LandingPageID != nil {
		if p, ok := m.pages[*src.LandingPageID]; ok {
			p.Clicks++
		}
	}
	m.writes++
	cp := *src
	return &cp, nil
}

func (m *memStore) RecordConversion(_ context.Context, ref repository.SourceRef, conv *model.Conversion) (*model.TrafficSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var src *model.TrafficSource
	if ref.UTMID != "" {
		src = m.sources[ref.UTMID]
		if src != nil && ref.UserID != "" && src.UserID != ref.UserID {
			src = nil
		}
	} else {
		for _, s := range m.sources {
			if s.ID == ref.ID && s.UserID == ref.UserID {
				src = s
			}
		}
	}
	if src == nil {
		return nil, repository.ErrSourceNotFound
	}

	conv.TrafficSourceID = src.ID
	conv.UTMID = src.UTMID
	conv.TimeToConversion = model.TimeToConversionSeconds(src.FirstClick, conv.CreatedAt)
	m.conversions = append(m.conversions, conv)

	src.Conversions++
	src.Revenue += conv.Amount
	m.writes++
	cp := *src
	return &cp, nil
}

func (m *memStore) ListTrafficSources(_ context.Context, filter repository.SourceFilter, _ string, limit int) ([]*model.TrafficSource, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.TrafficSource
	for _, s := range m.sources {
		if s.UserID == filter.UserID && (filter.UTMSource == "" || s.UTMSource == filter.UTMSource) {
			out = append(out, s)
		}
	}
	if len(out) > limit {
		return out[:limit], "next", nil
	}
	return out, "", nil
}

func (m *memStore) ListConversions(_ context.Context, filter repository.ConversionFilter, cursor string, limit int) ([]*model.Conversion, string, error) {
	if cursor == "bad" {
		return nil, "", repository.ErrInvalidCursor
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Conversion
	for _, c := range m.conversions {
		if filter.TrafficSourceID == "" || c.TrafficSourceID == filter.TrafficSourceID {
			out = append(out, c)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, "", nil
}

func (m *memStore) GetConversionSummary(_ context.Context, trafficSourceID string) (*model.ConversionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaryRequests++
	summary := &model.ConversionSummary{ByType: map[string]int64{}}
	for _, c := range m.conversions {
		if c.TrafficSourceID == trafficSourceID {
			summary.Count++
			summary.Revenue += c.Amount
			summary.ByType[c.ConversionType]++
		}
	}
	return summary, nil
}

func (m *memStore) CreateCreative(_ context.Context, c *model.Creative) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creatives[c.ID] = c
	return nil
}

func (m *memStore) GetCreative(_ context.Context, id, userID string) (*model.Creative, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creatives[id]
	if !ok || c.UserID != userID {
		return nil, repository.ErrCreativeNotFound
	}
	return c, nil
}

func (m *memStore) ListCreatives(_ context.Context, filter repository.CreativeFilter, _ string, _ int) ([]*model.Creative, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Creative
	for _, c := range m.creatives {
		if c.UserID == filter.UserID {
			out = append(out, c)
		}
	}
	return out, "", nil
}

func (m *memStore) ArchiveCreative(_ context.Context, id, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creatives[id]
	if !ok || c.UserID != userID {
		return repository.ErrCreativeNotFound
	}
	c.Status = model.CreativeStatusArchived
	c.UpdatedAt = at
	return nil
}

func (m *memStore) CreateInfluencer(_ context.Context, inf *model.Influencer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.influencers {
		if existing.UserID == inf.UserID && existing.Platform == inf.Platform && existing.Handle == inf.Handle {
			return repository.ErrInfluencerExists
		}
	}
	m.influencers[inf.ID] = inf
	return nil
}

func (m *memStore) ListInfluencers(_ context.Context, filter repository.InfluencerFilter, _ string, _ int) ([]*model.Influencer, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Influencer
	for _, inf := range m.influencers {
		if inf.UserID == filter.UserID && (filter.FunnelStatus == "" || inf.FunnelStatus == filter.FunnelStatus) {
			out = append(out, inf)
		}
	}
	return out, "", nil
}

func (m *memStore) UpdateInfluencerStatus(_ context.Context, id, userID, status string, at time.Time) (*model.Influencer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inf, ok := m.influencers[id]
	if !ok || inf.UserID != userID {
		return nil, repository.ErrInfluencerNotFound
	}
	inf.FunnelStatus = status
	inf.UpdatedAt = at
	return inf, nil
}

func (m *memStore) CreateLandingPage(_ context.Context, p *model.LandingPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.pages {
		if existing.Slug == p.Slug {
			return repository.ErrSlugExists
		}
	}
	cp := *p
	m.pages[p.ID] = &cp
	m.writes++
	return nil
}

func (m *memStore) GetLandingPage(_ context.Context, id, userID string) (*model.LandingPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[id]
	if !ok || p.UserID != userID {
		return nil, repository.ErrLandingNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetLandingPageBySlugOrID(_ context.Context, ref string) (*model.LandingPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pages {
		if p.ID == ref || p.Slug == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrLandingNotFound
}

func (m *memStore) UpdateLandingPage(_ context.Context, p *model.LandingPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.pages[p.ID]
	if !ok || existing.UserID != p.UserID {
		return repository.ErrLandingNotFound
	}
	cp := *p
	m.pages[p.ID] = &cp
	m.writes++
	return nil
}

func (m *memStore) DeleteLandingPage(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[id]
	if !ok || p.UserID != userID {
		return repository.ErrLandingNotFound
	}
	delete(m.pages, id)
	m.writes++
	return nil
}

func (m *memStore) ListLandingPages(_ context.Context, filter repository.LandingFilter, _ string, _ int) ([]*model.LandingPage, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.LandingPage
	for _, p := range m.pages {
		if p.UserID == filter.UserID && (filter.Status == "" || p.Status == filter.Status) {
			out = append(out, p)
		}
	}
	return out, "", nil
}

func (m *memStore) RecordLandingView(_ context.Context, pageID string, src *model.TrafficSource, at time.Time) (*model.LandingPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[pageID]
	if !ok || p.Status != model.LandingStatusActive {
		return nil, repository.ErrLandingNotFound
	}
	if err := m.insertSource(src); err != nil {
		return nil, err
	}
	p.Views++
	p.LastViewAt = &at
	cp := *p
	return &cp, nil
}

type fixedGeo struct {
	loc   geoip.Location
	calls int
}

func (g *fixedGeo) Lookup(context.Context, string) geoip.Location {
	g.calls++
	return g.loc
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.AttributionEvent
}

func (s *recordingSink) Dispatch(e model.AttributionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) types() []model.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.EventType
	}
	return out
}

// clock is a controllable time source for tests.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
