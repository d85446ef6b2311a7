package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/klbk90/creative-optimizer-sub001/internal/auth"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
	"github.com/klbk90/creative-optimizer-sub001/internal/service"
)

const testUserID = "user-1"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withUser authenticates every request as testUserID.
func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := &model.AuthContext{KeyID: "key-1", UserID: testUserID, Scopes: []string{model.ScopeAdmin}}
		next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
	})
}

// fakeAttribution records inputs and returns canned results.
type fakeAttribution struct {
	generateIn  service.GenerateLinkInput
	clickIn     service.TrackClickInput
	convRef     service.ConversionRef
	convIn      service.ConversionInput
	sourcesIn   service.ListSourcesInput
	convListIn  service.ListConversionsInput
	getUser     string
	getUTMID    string
	convCalls   int
	err         error
	redirectURL string
	source      *model.TrafficSource
}

func (f *fakeAttribution) GenerateLink(_ context.Context, in service.GenerateLinkInput) (*service.GeneratedLink, error) {
	f.generateIn = in
	if f.err != nil {
		return nil, f.err
	}
	src := &model.TrafficSource{ID: "ts-1", UTMID: "tiktok_ab12cd34", LinkType: model.LinkType(in.LinkType), UserID: in.UserID}
	return &service.GeneratedLink{URL: "https://go.example.com/r/tiktok_ab12cd34", Source: src}, nil
}

func (f *fakeAttribution) TrackClick(_ context.Context, in service.TrackClickInput) (*model.TrafficSource, error) {
	f.clickIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.TrafficSource{ID: "ts-1", UTMID: in.UTMID, Clicks: 1}, nil
}

func (f *fakeAttribution) ResolveRedirect(_ context.Context, in service.TrackClickInput) (string, error) {
	f.clickIn = in
	if f.err != nil {
		return "", f.err
	}
	return f.redirectURL, nil
}

func (f *fakeAttribution) RecordConversion(_ context.Context, ref service.ConversionRef, in service.ConversionInput) (*model.Conversion, error) {
	f.convCalls++
	f.convRef = ref
	f.convIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.Conversion{ID: "conv-1", TrafficSourceID: "ts-1", UTMID: "tiktok_ab12cd34",
		ConversionType: in.ConversionType, Amount: in.Amount, Currency: "USD"}, nil
}

func (f *fakeAttribution) ListSources(_ context.Context, in service.ListSourcesInput) (*service.Page[*model.TrafficSource], error) {
	f.sourcesIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.Page[*model.TrafficSource]{
		Items:      []*model.TrafficSource{{ID: "ts-1", UTMID: "a_1", Clicks: 4, Conversions: 1, Revenue: 2000}},
		NextCursor: "next",
		HasMore:    true,
	}, nil
}

func (f *fakeAttribution) GetSource(_ context.Context, userID, utmID string) (*service.SourceDetail, error) {
	f.getUser, f.getUTMID = userID, utmID
	if f.err != nil {
		return nil, f.err
	}
	src := f.source
	if src == nil {
		src = &model.TrafficSource{ID: "ts-1", UTMID: utmID}
	}
	return &service.SourceDetail{Source: src, Summary: &model.ConversionSummary{}}, nil
}

func (f *fakeAttribution) ListConversions(_ context.Context, in service.ListConversionsInput) (*service.Page[*model.Conversion], error) {
	f.convListIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.Page[*model.Conversion]{}, nil
}

// fakeLanding records the last call.
type fakeLanding struct {
	createIn service.CreateLandingInput
	updateIn service.UpdateLandingInput
	listIn   service.ListLandingsInput
	lastID   string
	lastUser string
	domain   string
	status   string
	meta     service.RequestMeta
	err      error
}

func (f *fakeLanding) page() *model.LandingPage {
	return &model.LandingPage{ID: "lp-1", UserID: testUserID, Slug: "summer-sale", Status: model.LandingStatusDraft}
}

func (f *fakeLanding) Create(_ context.Context, in service.CreateLandingInput) (*model.LandingPage, error) {
	f.createIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.page(), nil
}

func (f *fakeLanding) Get(_ context.Context, id, userID string) (*model.LandingPage, error) {
	f.lastID, f.lastUser = id, userID
	if f.err != nil {
		return nil, f.err
	}
	return f.page(), nil
}

func (f *fakeLanding) Update(_ context.Context, in service.UpdateLandingInput) (*model.LandingPage, error) {
	f.updateIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.page(), nil
}

func (f *fakeLanding) List(_ context.Context, in service.ListLandingsInput) (*service.Page[*model.LandingPage], error) {
	f.listIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.Page[*model.LandingPage]{Items: []*model.LandingPage{f.page()}}, nil
}

func (f *fakeLanding) Delete(_ context.Context, id, userID string) error {
	f.lastID, f.lastUser = id, userID
	return f.err
}

func (f *fakeLanding) Deploy(_ context.Context, id, userID, domain string) (*model.LandingPage, error) {
	f.lastID, f.lastUser, f.domain = id, userID, domain
	if f.err != nil {
		return nil, f.err
	}
	return f.page(), nil
}

func (f *fakeLanding) SetStatus(_ context.Context, id, userID, status string) (*model.LandingPage, error) {
	f.lastID, f.lastUser, f.status = id, userID, status
	if f.err != nil {
		return nil, f.err
	}
	return f.page(), nil
}

func (f *fakeLanding) Render(_ context.Context, slugOrID string, meta service.RequestMeta) (*service.RenderedPage, error) {
	f.lastID, f.meta = slugOrID, meta
	if f.err != nil {
		return nil, f.err
	}
	return &service.RenderedPage{HTML: []byte("<html>page</html>"), Page: f.page(), UTMID: "lp_summer_1a2b3c4d"}, nil
}

func (f *fakeLanding) Preview(_ context.Context, id, userID string) (*service.RenderedPage, error) {
	f.lastID, f.lastUser = id, userID
	if f.err != nil {
		return nil, f.err
	}
	return &service.RenderedPage{HTML: []byte("<html>preview</html>"), Page: f.page(), UTMID: service.PreviewUTMID}, nil
}

// fakeCatalog records the last call.
type fakeCatalog struct {
	creativeIn   service.CreateCreativeInput
	influencerIn service.CreateInfluencerInput
	listCrIn     service.ListCreativesInput
	listInfIn    service.ListInfluencersInput
	lastID       string
	lastUser     string
	status       string
	err          error
}

func (f *fakeCatalog) CreateCreative(_ context.Context, in service.CreateCreativeInput) (*model.Creative, error) {
	f.creativeIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.Creative{ID: "cr-1", UserID: in.UserID, Name: in.Name}, nil
}

func (f *fakeCatalog) GetCreative(_ context.Context, id, userID string) (*model.Creative, error) {
	f.lastID, f.lastUser = id, userID
	if f.err != nil {
		return nil, f.err
	}
	return &model.Creative{ID: id, UserID: userID}, nil
}

func (f *fakeCatalog) ListCreatives(_ context.Context, in service.ListCreativesInput) (*service.Page[*model.Creative], error) {
	f.listCrIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.Page[*model.Creative]{}, nil
}

func (f *fakeCatalog) ArchiveCreative(_ context.Context, id, userID string) error {
	f.lastID, f.lastUser = id, userID
	return f.err
}

func (f *fakeCatalog) CreateInfluencer(_ context.Context, in service.CreateInfluencerInput) (*model.Influencer, error) {
	f.influencerIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.Influencer{ID: "inf-1", Handle: in.Handle, EngagementRateBP: model.PercentToBasisPoints(in.EngagementRate)}, nil
}

func (f *fakeCatalog) ListInfluencers(_ context.Context, in service.ListInfluencersInput) (*service.Page[*model.Influencer], error) {
	f.listInfIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.Page[*model.Influencer]{}, nil
}

func (f *fakeCatalog) UpdateInfluencerStatus(_ context.Context, id, userID, status string) (*model.Influencer, error) {
	f.lastID, f.lastUser, f.status = id, userID, status
	if f.err != nil {
		return nil, f.err
	}
	return &model.Influencer{ID: id, FunnelStatus: status}, nil
}
