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
	"github.com/klbk90/creative-optimizer-sub001/internal/render"
)

type landingFixture struct {
	svc     *LandingService
	store   *memStore
	sink    *recordingSink
	metrics *metrics.InMemoryRecorder
	clock   *clock
}

func newLandingFixture(t *testing.T) *landingFixture {
	t.Helper()
	renderer, err := render.New()
	if err != nil {
		t.Fatalf("render.New failed: %v", err)
	}

	f := &landingFixture{
		store:   newMemStore(),
		sink:    &recordingSink{},
		metrics: metrics.NewInMemory(),
		clock:   newClock(),
	}
	geo := &fixedGeo{loc: geoip.Location{Country: "FR", City: "Paris"}}
	f.svc = NewLandingService(f.store, renderer, geo, f.sink, "shop_bot", discardLogger(), f.metrics)
	f.svc.now = f.clock.now
	return f
}

func (f *landingFixture) create(t *testing.T, in CreateLandingInput) *model.LandingPage {
	t.Helper()
	if in.UserID == "" {
		in.UserID = "user-1"
	}
	if in.Name == "" {
		in.Name = "Spring Sale"
	}
	if in.Template == "" {
		in.Template = string(model.TemplateProductShowcase)
	}
	if in.UTMSource == "" {
		in.UTMSource = "instagram"
	}
	if in.UTMMedium == "" {
		in.UTMMedium = "landing"
	}
	page, err := f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return page
}

func (f *landingFixture) activate(t *testing.T, page *model.LandingPage) {
	t.Helper()
	if _, err := f.svc.SetStatus(context.Background(), page.ID, page.UserID, string(model.LandingStatusActive)); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
}

func TestLandingCreate(t *testing.T) {
	f := newLandingFixture(t)

	page := f.create(t, CreateLandingInput{Name: "Spring Sale 2026!"})

	if page.Status != model.LandingStatusDraft || page.IsPublished {
		t.Errorf("new page should be an unpublished draft: %+v", page)
	}
	if !strings.HasPrefix(page.Slug, "spring-sale-2026-") || len(page.Slug) != len("spring-sale-2026-")+slugSuffixLength {
		t.Errorf("slug = %q", page.Slug)
	}
	if page.Config == nil {
		t.Error("config should default to an empty map")
	}
}

func TestLandingCreate_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		input   CreateLandingInput
		wantErr error
	}{
		{"missing name", CreateLandingInput{Name: " ", Template: "lead_capture", UTMSource: "a", UTMMedium: "b"}, ErrMissingName},
		{"bad template", CreateLandingInput{Name: "n", Template: "gallery", UTMSource: "a", UTMMedium: "b"}, ErrInvalidTemplate},
		{"missing source", CreateLandingInput{Name: "n", Template: "lead_capture", UTMMedium: "b"}, ErrMissingSource},
		{"bad redirect", CreateLandingInput{Name: "n", Template: "lead_capture", UTMSource: "a", UTMMedium: "b", RedirectURL: "javascript:alert(1)"}, ErrInvalidURL},
		{"bad delay", CreateLandingInput{Name: "n", Template: "lead_capture", UTMSource: "a", UTMMedium: "b", RedirectDelay: 120}, ErrInvalidRedirectDelay},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newLandingFixture(t)
			_, err := f.svc.Create(context.Background(), tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLandingSetStatus_PublishesOnce(t *testing.T) {
	f := newLandingFixture(t)
	page := f.create(t, CreateLandingInput{})

	activated, err := f.svc.SetStatus(context.Background(), page.ID, "user-1", "active")
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if !activated.IsPublished || activated.PublishedAt == nil {
		t.Fatal("activating should publish")
	}
	publishedAt := *activated.PublishedAt

	f.clock.advance(time.Hour)
	if _, err := f.svc.SetStatus(context.Background(), page.ID, "user-1", "paused"); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	again, err := f.svc.SetStatus(context.Background(), page.ID, "user-1", "active")
	if err != nil {
		t.Fatalf("reactivate failed: %v", err)
	}
	if !again.PublishedAt.Equal(publishedAt) {
		t.Errorf("published_at moved from %v to %v", publishedAt, again.PublishedAt)
	}

	if _, err := f.svc.SetStatus(context.Background(), page.ID, "user-1", "live"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := f.svc.SetStatus(context.Background(), page.ID, "user-2", "active"); !errors.Is(err, ErrLandingNotFound) {
		t.Errorf("other owner: expected ErrLandingNotFound, got %v", err)
	}
}

func TestLandingRender_InactiveWritesNothing(t *testing.T) {
	for _, status := range []model.LandingStatus{model.LandingStatusDraft, model.LandingStatusPaused, model.LandingStatusArchived} {
		t.Run(string(status), func(t *testing.T) {
			f := newLandingFixture(t)
			page := f.create(t, CreateLandingInput{})
			if status != model.LandingStatusDraft {
				if _, err := f.svc.SetStatus(context.Background(), page.ID, "user-1", string(status)); err != nil {
					t.Fatalf("SetStatus failed: %v", err)
				}
			}
			before := f.store.writes

			_, err := f.svc.Render(context.Background(), page.Slug, RequestMeta{})
			if !errors.Is(err, ErrLandingNotFound) {
				t.Fatalf("expected ErrLandingNotFound, got %v", err)
			}
			if f.store.writes != before || len(f.store.sources) != 0 {
				t.Error("inactive render must not write")
			}
		})
	}
}

func TestLandingRender_MintsSourcePerView(t *testing.T) {
	f := newLandingFixture(t)
	page := f.create(t, CreateLandingInput{
		RedirectURL: "https://shop.example.com/checkout?ref={utm_id}",
		Config:      map[string]any{"headline": "Hello"},
	})
	f.activate(t, page)

	meta := RequestMeta{IP: "8.8.8.8", UserAgent: iPhoneUA}
	first, err := f.svc.Render(context.Background(), page.Slug, meta)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	second, err := f.svc.Render(context.Background(), page.ID, meta)
	if err != nil {
		t.Fatalf("Render by id failed: %v", err)
	}

	if first.UTMID == second.UTMID {
		t.Error("each render should mint a new utm_id")
	}
	if len(f.store.sources) != 2 {
		t.Errorf("sources = %d, want 2", len(f.store.sources))
	}
	if second.Page.Views != 2 || second.Page.LastViewAt == nil {
		t.Errorf("views = %d, last_view_at = %v", second.Page.Views, second.Page.LastViewAt)
	}

	src := f.store.source(first.UTMID)
	if src.LandingPageID == nil || *src.LandingPageID != page.ID {
		t.Errorf("landing_page_id = %v", src.LandingPageID)
	}
	if src.Country != "FR" || src.DeviceType != model.DeviceMobile {
		t.Errorf("enrichment = %s/%s", src.Country, src.DeviceType)
	}
	if src.Clicks != 0 {
		t.Errorf("render should not count a click, got %d", src.Clicks)
	}

	wantRedirect := "https://shop.example.com/checkout?ref=" + first.UTMID
	if first.RedirectURL != wantRedirect || src.TargetURL != wantRedirect {
		t.Errorf("redirect = %q, target = %q", first.RedirectURL, src.TargetURL)
	}
	if !strings.Contains(string(first.HTML), "Hello") {
		t.Error("html missing headline")
	}
	if f.metrics.Count("landing_view", string(model.TemplateProductShowcase)) != 2 {
		t.Error("views not counted")
	}
	if types := f.sink.types(); len(types) != 2 || types[0] != model.EventTypePageView {
		t.Errorf("events = %v", types)
	}
}

func TestLandingRender_DefaultsToBotLink(t *testing.T) {
	f := newLandingFixture(t)
	page := f.create(t, CreateLandingInput{})
	f.activate(t, page)

	out, err := f.svc.Render(context.Background(), page.Slug, RequestMeta{})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out.RedirectURL != "https://t.me/shop_bot?start="+out.UTMID {
		t.Errorf("redirect = %q", out.RedirectURL)
	}
}

func TestResolveRedirect_LandingMintedSource(t *testing.T) {
	testCases := []struct {
		name        string
		redirectURL string
		want        func(utmID string) string
	}{
		{
			name: "bot default",
			want: func(utmID string) string { return "https://t.me/shop_bot?start=" + utmID },
		},
		{
			name:        "placeholder target",
			redirectURL: "https://shop.example.com/buy?ref=" + UTMIDPlaceholder,
			want:        func(utmID string) string { return "https://shop.example.com/buy?ref=" + utmID },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newLandingFixture(t)
			page := f.create(t, CreateLandingInput{RedirectURL: tc.redirectURL})
			f.activate(t, page)

			out, err := f.svc.Render(context.Background(), page.Slug, RequestMeta{})
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}

			attr := NewAttributionService(f.store, &fixedGeo{}, f.sink, AttributionConfig{
				LandingBaseURL: "https://go.example.com/r/",
				BotUsername:    "shop_bot",
			}, discardLogger(), f.metrics)

			dest, err := attr.ResolveRedirect(context.Background(), TrackClickInput{UTMID: out.UTMID})
			if err != nil {
				t.Fatalf("ResolveRedirect failed: %v", err)
			}
			if want := tc.want(out.UTMID); dest != want {
				t.Errorf("dest = %q, want %q", dest, want)
			}
			if dest != out.RedirectURL {
				t.Errorf("dest = %q, rendered page redirects to %q", dest, out.RedirectURL)
			}
			if strings.Contains(dest, "utm_source=") {
				t.Errorf("dest = %q should not be rebuilt with utm params", dest)
			}
		})
	}
}

func TestLandingRender_UnknownPage(t *testing.T) {
	f := newLandingFixture(t)

	if _, err := f.svc.Render(context.Background(), "missing", RequestMeta{}); !errors.Is(err, ErrLandingNotFound) {
		t.Errorf("expected ErrLandingNotFound, got %v", err)
	}
}

func TestLandingPreview_NoWrites(t *testing.T) {
	f := newLandingFixture(t)
	page := f.create(t, CreateLandingInput{})
	before := f.store.writes

	out, err := f.svc.Preview(context.Background(), page.ID, "user-1")
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if out.UTMID != PreviewUTMID {
		t.Errorf("utm_id = %q", out.UTMID)
	}
	if f.store.writes != before || len(f.store.sources) != 0 {
		t.Error("preview must not write")
	}

	if _, err := f.svc.Preview(context.Background(), page.ID, "user-2"); !errors.Is(err, ErrLandingNotFound) {
		t.Errorf("other owner: expected ErrLandingNotFound, got %v", err)
	}
}

func TestLandingUpdate(t *testing.T) {
	f := newLandingFixture(t)
	page := f.create(t, CreateLandingInput{})

	name := "Summer Sale"
	delay := 5
	updated, err := f.svc.Update(context.Background(), UpdateLandingInput{
		ID:            page.ID,
		UserID:        "user-1",
		Name:          &name,
		RedirectDelay: &delay,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Name != name || updated.RedirectDelay != 5 {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.Slug != page.Slug {
		t.Error("slug must not change on rename")
	}

	bad := "pdf"
	if _, err := f.svc.Update(context.Background(), UpdateLandingInput{ID: page.ID, UserID: "user-1", Template: &bad}); !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("expected ErrInvalidTemplate, got %v", err)
	}
}

func TestLandingDeploy(t *testing.T) {
	f := newLandingFixture(t)
	page := f.create(t, CreateLandingInput{})

	deployed, err := f.svc.Deploy(context.Background(), page.ID, "user-1", " Promo.Example.COM ")
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if deployed.CustomDomain != "promo.example.com" || deployed.DomainVerified {
		t.Errorf("domain = %q verified = %v", deployed.CustomDomain, deployed.DomainVerified)
	}
	if !deployed.IsActive() || !deployed.IsPublished {
		t.Error("deploy should activate and publish")
	}

	if _, err := f.svc.Deploy(context.Background(), page.ID, "user-1", ""); !errors.Is(err, ErrMissingDomain) {
		t.Errorf("expected ErrMissingDomain, got %v", err)
	}
}

func TestLandingDelete(t *testing.T) {
	f := newLandingFixture(t)
	page := f.create(t, CreateLandingInput{})

	if err := f.svc.Delete(context.Background(), page.ID, "user-2"); !errors.Is(err, ErrLandingNotFound) {
		t.Errorf("other owner: expected ErrLandingNotFound, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), page.ID, "user-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), page.ID, "user-1"); !errors.Is(err, ErrLandingNotFound) {
		t.Errorf("expected ErrLandingNotFound after delete, got %v", err)
	}
}

func TestLandingList_FilterByStatus(t *testing.T) {
	f := newLandingFixture(t)
	active := f.create(t, CreateLandingInput{Name: "A"})
	f.activate(t, active)
	f.create(t, CreateLandingInput{Name: "B"})

	page, err := f.svc.List(context.Background(), ListLandingsInput{UserID: "user-1", Status: "active"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != active.ID {
		t.Errorf("items = %v", page.Items)
	}

	if _, err := f.svc.List(context.Background(), ListLandingsInput{UserID: "user-1", Status: "live"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestSlugify(t *testing.T) {
	testCases := map[string]string{
		"Spring Sale":           "spring-sale",
		"  Hello, World!  ":     "hello-world",
		"Crème brûlée":          "cr-me-br-l-e",
		"!!!":                   "page",
		"already-slugged-name":  "already-slugged-name",
		strings.Repeat("a", 80): strings.Repeat("a", maxSlugBaseLen),
	}

	for in, want := range testCases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
