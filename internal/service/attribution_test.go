package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/klbk90/creative-optimizer-sub001/internal/geoip"
	"github.com/klbk90/creative-optimizer-sub001/internal/metrics"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

const (
	iPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1"
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"
)

type attributionFixture struct {
	svc     *AttributionService
	store   *memStore
	geo     *fixedGeo
	sink    *recordingSink
	metrics *metrics.InMemoryRecorder
	clock   *clock
}

func newAttributionFixture() *attributionFixture {
	f := &attributionFixture{
		store:   newMemStore(),
		geo:     &fixedGeo{loc: geoip.Location{Country: "DE", City: "Berlin"}},
		sink:    &recordingSink{},
		metrics: metrics.NewInMemory(),
		clock:   newClock(),
	}
	f.svc = NewAttributionService(f.store, f.geo, f.sink, AttributionConfig{
		LandingBaseURL: "https://go.example.com/r/",
		BotUsername:    "shop_bot",
	}, discardLogger(), f.metrics)
	f.svc.now = f.clock.now
	return f
}

func (f *attributionFixture) generate(t *testing.T, in GenerateLinkInput) *GeneratedLink {
	t.Helper()
	if in.UserID == "" {
		in.UserID = "user-1"
	}
	if in.Source == "" {
		in.Source = "instagram"
	}
	if in.Medium == "" {
		in.Medium = "social"
	}
	if in.LinkType == "" {
		in.LinkType = "landing"
	}
	link, err := f.svc.GenerateLink(context.Background(), in)
	if err != nil {
		t.Fatalf("GenerateLink failed: %v", err)
	}
	return link
}

// ============================================================================
// GenerateLink
// ============================================================================

func TestGenerateLink_CreatesOneZeroedSource(t *testing.T) {
	f := newAttributionFixture()

	link := f.generate(t, GenerateLinkInput{Campaign: "spring"})

	if !strings.HasPrefix(link.Source.UTMID, "instagram_") {
		t.Errorf("utm_id %q should start with source", link.Source.UTMID)
	}
	if f.store.writes != 1 {
		t.Errorf("writes = %d, want 1", f.store.writes)
	}
	stored := f.store.source(link.Source.UTMID)
	if stored == nil {
		t.Fatal("source not stored")
	}
	if stored.Clicks != 0 || stored.Conversions != 0 || stored.Revenue != 0 {
		t.Errorf("counters not zero: %+v", stored)
	}
	if link.URL != "https://go.example.com/r/"+link.Source.UTMID {
		t.Errorf("URL = %q", link.URL)
	}
	if f.metrics.Count("link_generated", "landing") != 1 {
		t.Error("link_generated not counted")
	}
}

func TestGenerateLink_DirectLinks(t *testing.T) {
	testCases := []struct {
		name       string
		baseURL    string
		wantPrefix string
		wantParts  []string
	}{
		{
			name:       "existing query joins with ampersand",
			baseURL:    "https://shop.example.com/p?ref=1",
			wantPrefix: "https://shop.example.com/p?ref=1&utm_source=tiktok",
			wantParts:  []string{"&utm_medium=video", "&utm_id=tiktok_"},
		},
		{
			name:       "no query starts with question mark",
			baseURL:    "https://shop.example.com/p",
			wantPrefix: "https://shop.example.com/p?utm_source=tiktok",
		},
		{
			name:       "telegram bot gets start parameter",
			baseURL:    "https://t.me/shop_bot",
			wantPrefix: "https://t.me/shop_bot?start=tiktok_",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAttributionFixture()
			link := f.generate(t, GenerateLinkInput{
				Source:   "tiktok",
				Medium:   "video",
				BaseURL:  tc.baseURL,
				LinkType: "direct",
			})

			if !strings.HasPrefix(link.URL, tc.wantPrefix) {
				t.Errorf("URL = %q, want prefix %q", link.URL, tc.wantPrefix)
			}
			if strings.Count(link.URL, "?") != 1 {
				t.Errorf("URL %q must contain exactly one '?'", link.URL)
			}
			for _, part := range tc.wantParts {
				if !strings.Contains(link.URL, part) {
					t.Errorf("URL %q missing %q", link.URL, part)
				}
			}
		})
	}
}

func TestGenerateLink_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name    string
		input   GenerateLinkInput
		wantErr error
	}{
		{"invalid link type", GenerateLinkInput{Source: "a", Medium: "b", LinkType: "qr"}, ErrInvalidLinkType},
		{"missing source", GenerateLinkInput{Medium: "b", LinkType: "landing"}, ErrMissingSource},
		{"missing medium", GenerateLinkInput{Source: "a", LinkType: "landing"}, ErrMissingMedium},
		{"direct without base", GenerateLinkInput{Source: "a", Medium: "b", LinkType: "direct"}, ErrMissingBaseURL},
		{"bad base url", GenerateLinkInput{Source: "a", Medium: "b", LinkType: "direct", BaseURL: "ftp://x"}, ErrInvalidURL},
		{
			"bad funnel status",
			GenerateLinkInput{Source: "a", Medium: "b", LinkType: "landing", Influencer: &model.InfluencerAttribution{FunnelStatus: "ghosted"}},
			ErrInvalidFunnelStatus,
		},
		{"unknown creative", GenerateLinkInput{Source: "a", Medium: "b", LinkType: "landing", CreativeID: "missing"}, ErrCreativeNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAttributionFixture()
			_, err := f.svc.GenerateLink(context.Background(), tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if f.store.writes != 0 {
				t.Errorf("writes = %d, want 0", f.store.writes)
			}
		})
	}
}

func TestGenerateLink_RetriesCollisions(t *testing.T) {
	f := newAttributionFixture()
	f.store.utmCollisions = 2

	link := f.generate(t, GenerateLinkInput{})
	if f.store.source(link.Source.UTMID) == nil {
		t.Fatal("source not stored after retry")
	}

	f.store.utmCollisions = maxUTMIDAttempts
	_, err := f.svc.GenerateLink(context.Background(), GenerateLinkInput{
		UserID: "user-1", Source: "a", Medium: "b", LinkType: "landing",
	})
	if !errors.Is(err, ErrUTMIDCollision) {
		t.Errorf("expected ErrUTMIDCollision, got %v", err)
	}
}

func TestGenerateLink_StoresCreativeAndInfluencer(t *testing.T) {
	f := newAttributionFixture()
	f.store.creatives["cr-1"] = &model.Creative{ID: "cr-1", UserID: "user-1"}

	link := f.generate(t, GenerateLinkInput{
		CreativeID: "cr-1",
		Influencer: &model.InfluencerAttribution{Handle: "creator", EngagementRateBP: 345, FunnelStatus: model.FunnelActive},
	})

	stored := f.store.source(link.Source.UTMID)
	if stored.CreativeID == nil || *stored.CreativeID != "cr-1" {
		t.Errorf("creative_id = %v", stored.CreativeID)
	}
	if stored.Influencer == nil || stored.Influencer.EngagementRateBP != 345 {
		t.Errorf("influencer = %+v", stored.Influencer)
	}
}

// ============================================================================
// TrackClick
// ============================================================================

func TestTrackClick_CountsAndEnrichesFirstClickOnly(t *testing.T) {
	f := newAttributionFixture()
	link := f.generate(t, GenerateLinkInput{})
	utmID := link.Source.UTMID

	first := f.clock.now()
	if _, err := f.svc.TrackClick(context.Background(), TrackClickInput{
		UTMID:       utmID,
		RequestMeta: RequestMeta{IP: "8.8.8.8", UserAgent: iPhoneUA},
	}); err != nil {
		t.Fatalf("TrackClick failed: %v", err)
	}

	f.geo.loc = geoip.Location{Country: "US", City: "Austin"}
	const n = 5
	for i := 1; i < n; i++ {
		f.clock.advance(time.Minute)
		if _, err := f.svc.TrackClick(context.Background(), TrackClickInput{
			UTMID:       utmID,
			RequestMeta: RequestMeta{IP: "1.1.1.1", UserAgent: desktopUA},
		}); err != nil {
			t.Fatalf("TrackClick %d failed: %v", i, err)
		}
	}

	src := f.store.source(utmID)
	if src.Clicks != n {
		t.Errorf("clicks = %d, want %d", src.Clicks, n)
	}
	if src.DeviceType != model.DeviceMobile || src.OS != "iOS" {
		t.Errorf("device/os overwritten: %s/%s", src.DeviceType, src.OS)
	}
	if src.Country != "DE" || src.City != "Berlin" {
		t.Errorf("location overwritten: %s/%s", src.Country, src.City)
	}
	if !src.FirstClick.Equal(first) {
		t.Errorf("first_click = %v, want %v", src.FirstClick, first)
	}
	if !src.LastClick.Equal(f.clock.now()) {
		t.Errorf("last_click = %v, want %v", src.LastClick, f.clock.now())
	}
	if f.geo.calls != 1 {
		t.Errorf("geo lookups = %d, want 1", f.geo.calls)
	}
	if f.metrics.Count("click", metrics.ClickFirst) != 1 || f.metrics.Count("click", metrics.ClickRepeat) != n-1 {
		t.Error("click results not counted")
	}
	if len(f.sink.types()) != n {
		t.Errorf("events = %d, want %d", len(f.sink.types()), n)
	}
}

func TestTrackClick_UnknownUTMIDWritesNothing(t *testing.T) {
	f := newAttributionFixture()
	f.generate(t, GenerateLinkInput{})
	before := f.store.writes

	_, err := f.svc.TrackClick(context.Background(), TrackClickInput{UTMID: "nope_00000"})
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
	if f.store.writes != before {
		t.Errorf("writes changed: %d -> %d", before, f.store.writes)
	}
	if len(f.sink.types()) != 0 {
		t.Error("no event should be published")
	}
	if f.metrics.Count("click", metrics.ClickNotFound) != 1 {
		t.Error("not_found not counted")
	}
}

func TestTrackClick_EventDoesNotCarryRawIP(t *testing.T) {
	f := newAttributionFixture()
	link := f.generate(t, GenerateLinkInput{})

	_, err := f.svc.TrackClick(context.Background(), TrackClickInput{
		UTMID:       link.Source.UTMID,
		RequestMeta: RequestMeta{IP: "8.8.8.8", UserAgent: desktopUA, Referrer: "https://t.co/x?secret=1"},
	})
	if err != nil {
		t.Fatalf("TrackClick failed: %v", err)
	}

	ev := f.sink.events[0]
	for k, v := range ev.Data {
		if s, ok := v.(string); ok && strings.Contains(s, "8.8.8.8") {
			t.Errorf("event field %s leaks the IP", k)
		}
	}
	if ev.Data["referrer"] != "https://t.co/x" {
		t.Errorf("referrer = %v", ev.Data["referrer"])
	}
}

func TestResolveRedirect(t *testing.T) {
	testCases := []struct {
		name       string
		target     string
		wantPrefix string
	}{
		{"target gets utm params", "https://shop.example.com/?a=1", "https://shop.example.com/?a=1&utm_source=instagram"},
		{"bot target gets start", "https://t.me/other_bot", "https://t.me/other_bot?start=instagram_"},
		{"no target falls back to bot", "", "https://t.me/shop_bot?start=instagram_"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAttributionFixture()
			link := f.generate(t, GenerateLinkInput{BaseURL: tc.target})

			dest, err := f.svc.ResolveRedirect(context.Background(), TrackClickInput{UTMID: link.Source.UTMID})
			if err != nil {
				t.Fatalf("ResolveRedirect failed: %v", err)
			}
			if !strings.HasPrefix(dest, tc.wantPrefix) {
				t.Errorf("dest = %q, want prefix %q", dest, tc.wantPrefix)
			}
			if f.store.source(link.Source.UTMID).Clicks != 1 {
				t.Error("redirect should count a click")
			}
		})
	}
}

func TestResolveRedirect_NoTarget(t *testing.T) {
	f := newAttributionFixture()
	f.svc.cfg.BotUsername = ""
	link := f.generate(t, GenerateLinkInput{})

	_, err := f.svc.ResolveRedirect(context.Background(), TrackClickInput{UTMID: link.Source.UTMID})
	if !errors.Is(err, ErrNoRedirectTarget) {
		t.Errorf("expected ErrNoRedirectTarget, got %v", err)
	}
}

// ============================================================================
// RecordConversion
// ============================================================================

func TestRecordConversion_UpdatesCounters(t *testing.T) {
	f := newAttributionFixture()
	link := f.generate(t, GenerateLinkInput{})

	conv, err := f.svc.RecordConversion(context.Background(),
		ByTrafficSource(link.Source.ID, "user-1"),
		ConversionInput{ConversionType: "purchase", Amount: 4999, Currency: "eur"},
	)
	if err != nil {
		t.Fatalf("RecordConversion failed: %v", err)
	}

	src := f.store.source(link.Source.UTMID)
	if src.Conversions != 1 || src.Revenue != 4999 {
		t.Errorf("conversions=%d revenue=%d", src.Conversions, src.Revenue)
	}
	if len(f.store.conversions) != 1 {
		t.Fatalf("conversion rows = %d, want 1", len(f.store.conversions))
	}
	if conv.TrafficSourceID != src.ID || conv.UTMID != src.UTMID {
		t.Errorf("conversion not linked: %+v", conv)
	}
	if conv.Currency != "EUR" {
		t.Errorf("currency = %q, want EUR", conv.Currency)
	}
	if f.metrics.Count("conversion", metrics.ChannelAPI) != 1 || f.metrics.Count("revenue", "EUR") != 4999 {
		t.Error("conversion metrics not recorded")
	}
}

func TestRecordConversion_TimeToConversion(t *testing.T) {
	f := newAttributionFixture()
	link := f.generate(t, GenerateLinkInput{})

	// Webhook-first: no click yet.
	conv, err := f.svc.RecordConversion(context.Background(), ByUTMID(link.Source.UTMID),
		ConversionInput{ConversionType: "signup"})
	if err != nil {
		t.Fatalf("RecordConversion failed: %v", err)
	}
	if conv.TimeToConversion != nil {
		t.Errorf("time_to_conversion = %d, want nil", *conv.TimeToConversion)
	}

	if _, err := f.svc.TrackClick(context.Background(), TrackClickInput{UTMID: link.Source.UTMID}); err != nil {
		t.Fatalf("TrackClick failed: %v", err)
	}
	f.clock.advance(90 * time.Minute)

	conv, err = f.svc.RecordConversion(context.Background(), ByUTMID(link.Source.UTMID),
		ConversionInput{ConversionType: "purchase", Amount: 100})
	if err != nil {
		t.Fatalf("RecordConversion failed: %v", err)
	}
	if conv.TimeToConversion == nil || *conv.TimeToConversion != 5400 {
		t.Errorf("time_to_conversion = %v, want 5400", conv.TimeToConversion)
	}
	if f.metrics.Count("conversion", metrics.ChannelWebhook) != 2 {
		t.Error("webhook channel not counted")
	}

	// Conversions may exceed clicks.
	src := f.store.source(link.Source.UTMID)
	if src.Conversions != 2 || src.Clicks != 1 {
		t.Errorf("conversions=%d clicks=%d", src.Conversions, src.Clicks)
	}
}

func TestRecordConversion_OwnedUTMIDScopedToOwner(t *testing.T) {
	f := newAttributionFixture()
	link := f.generate(t, GenerateLinkInput{UserID: "user-1"})

	_, err := f.svc.RecordConversion(context.Background(), ByOwnedUTMID(link.Source.UTMID, "user-2"),
		ConversionInput{ConversionType: "purchase", Amount: 500})
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("foreign owner: expected ErrSourceNotFound, got %v", err)
	}

	if _, err := f.svc.RecordConversion(context.Background(), ByOwnedUTMID(link.Source.UTMID, "user-1"),
		ConversionInput{ConversionType: "purchase", Amount: 500}); err != nil {
		t.Fatalf("RecordConversion failed: %v", err)
	}
	if f.metrics.Count("conversion", metrics.ChannelAPI) != 1 {
		t.Error("owned utm_id conversion not counted on the api channel")
	}
}

func TestRecordConversion_NoIdempotency(t *testing.T) {
	f := newAttributionFixture()
	link := f.generate(t, GenerateLinkInput{})

	in := ConversionInput{ConversionType: "purchase", Amount: 500, Metadata: map[string]any{"order_id": "o-1"}}
	for i := 0; i < 2; i++ {
		if _, err := f.svc.RecordConversion(context.Background(), ByUTMID(link.Source.UTMID), in); err != nil {
			t.Fatalf("RecordConversion failed: %v", err)
		}
	}

	if src := f.store.source(link.Source.UTMID); src.Revenue != 1000 {
		t.Errorf("revenue = %d, want 1000", src.Revenue)
	}
}

func TestRecordConversion_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		ref     ConversionRef
		input   ConversionInput
		wantErr error
	}{
		{"no reference", ConversionRef{}, ConversionInput{ConversionType: "purchase"}, ErrMissingReference},
		{"no type", ByUTMID("x"), ConversionInput{}, ErrMissingConvType},
		{"negative amount", ByUTMID("x"), ConversionInput{ConversionType: "refund", Amount: -1}, ErrInvalidAmount},
		{"bad currency", ByUTMID("x"), ConversionInput{ConversionType: "purchase", Currency: "EURO"}, ErrInvalidCurrency},
		{"unknown utm_id", ByUTMID("missing"), ConversionInput{ConversionType: "purchase"}, ErrSourceNotFound},
		{"other owner", ByTrafficSource("src", "user-2"), ConversionInput{ConversionType: "purchase"}, ErrSourceNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAttributionFixture()
			f.generate(t, GenerateLinkInput{})
			before := f.store.writes

			_, err := f.svc.RecordConversion(context.Background(), tc.ref, tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if f.store.writes != before {
				t.Error("failed conversion must not write")
			}
		})
	}
}

// ============================================================================
// Listing
// ============================================================================

func TestGetSource_LoadsSummary(t *testing.T) {
	f := newAttributionFixture()
	link := f.generate(t, GenerateLinkInput{})
	for _, amount := range []int64{100, 250} {
		if _, err := f.svc.RecordConversion(context.Background(), ByUTMID(link.Source.UTMID),
			ConversionInput{ConversionType: "purchase", Amount: amount}); err != nil {
			t.Fatalf("RecordConversion failed: %v", err)
		}
	}

	detail, err := f.svc.GetSource(context.Background(), "user-1", link.Source.UTMID)
	if err != nil {
		t.Fatalf("GetSource failed: %v", err)
	}
	if detail.Summary.Count != 2 || detail.Summary.Revenue != 350 {
		t.Errorf("summary = %+v", detail.Summary)
	}
	if len(detail.RecentConversions) != 2 {
		t.Errorf("recent = %d, want 2", len(detail.RecentConversions))
	}

	if _, err := f.svc.GetSource(context.Background(), "user-2", link.Source.UTMID); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("other owner: expected ErrSourceNotFound, got %v", err)
	}
}

func TestListSources_ClampsLimitAndScopesOwner(t *testing.T) {
	f := newAttributionFixture()
	for i := 0; i < 3; i++ {
		f.generate(t, GenerateLinkInput{})
	}
	f.generate(t, GenerateLinkInput{UserID: "user-2"})

	page, err := f.svc.ListSources(context.Background(), ListSourcesInput{UserID: "user-1", Limit: 1000})
	if err != nil {
		t.Fatalf("ListSources failed: %v", err)
	}
	if len(page.Items) != 3 || page.HasMore {
		t.Errorf("items=%d has_more=%v", len(page.Items), page.HasMore)
	}

	page, err = f.svc.ListSources(context.Background(), ListSourcesInput{UserID: "user-1", Limit: 2})
	if err != nil {
		t.Fatalf("ListSources failed: %v", err)
	}
	if !page.HasMore || page.NextCursor == "" {
		t.Error("expected another page")
	}
}

func TestListConversions_InvalidCursor(t *testing.T) {
	f := newAttributionFixture()

	_, err := f.svc.ListConversions(context.Background(), ListConversionsInput{UserID: "user-1", Cursor: "bad"})
	if !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("expected ErrInvalidCursor, got %v", err)
	}
}
