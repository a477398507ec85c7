package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/afftrack/linktrack/internal/dedup"
	"github.com/afftrack/linktrack/internal/domain"
	"github.com/afftrack/linktrack/internal/follower"
	"github.com/afftrack/linktrack/internal/logger"
	"github.com/afftrack/linktrack/internal/recorder"
	"github.com/afftrack/linktrack/internal/signing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errUnknownClick = errors.New("unknown click")

type statusUpdate struct {
	clickID string
	status  domain.Status
}

type aggregateAppend struct {
	affiliateID string
	kind        string
	entry       any
}

type fakeStore struct {
	mu         sync.Mutex
	clicks     map[string]*domain.ClickRecord
	statuses   []statusUpdate
	aggregates []aggregateAppend
	physical   []string
	insertErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{clicks: make(map[string]*domain.ClickRecord)}
}

func (s *fakeStore) InsertClick(_ context.Context, rec *domain.ClickRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.clicks[rec.ClickID] = rec
	return nil
}

func (s *fakeStore) GetClick(_ context.Context, clickID string) (*domain.ClickRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.clicks[clickID]
	if !ok {
		return nil, errUnknownClick
	}
	return rec, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, clickID string, next domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, statusUpdate{clickID: clickID, status: next})
	return nil
}

func (s *fakeStore) RecordPhysicalClick(_ context.Context, clickID, _, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.physical = append(s.physical, clickID)
	return nil
}

func (s *fakeStore) AppendAggregate(_ context.Context, affiliateID, kind string, entry any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates = append(s.aggregates, aggregateAppend{
		affiliateID: affiliateID,
		kind:        kind,
		entry:       entry,
	})
	return nil
}

func (s *fakeStore) aggregateKinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]string, 0, len(s.aggregates))
	for _, a := range s.aggregates {
		kinds = append(kinds, a.kind)
	}
	return kinds
}

type fakeFollower struct {
	mu     sync.Mutex
	result follower.Result
	calls  []string
}

func (f *fakeFollower) Follow(_ context.Context, startURL string) follower.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, startURL)
	return f.result
}

type fakeDeduper struct {
	mu        sync.Mutex
	decision  dedup.Decision
	committed []*domain.UserSession
}

func (d *fakeDeduper) Decide(_ context.Context, _ dedup.Visit) (dedup.Decision, error) {
	return d.decision, nil
}

func (d *fakeDeduper) Commit(_ context.Context, sess *domain.UserSession) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.committed = append(d.committed, sess)
	return true, nil
}

type testEnv struct {
	orch   *Orchestrator
	store  *fakeStore
	follow *fakeFollower
	dedupe *fakeDeduper
	rec    *recorder.Recorder
	router *gin.Engine
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	if cfg.FallbackURL == "" {
		cfg.FallbackURL = "https://fallback.example/"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://track.example"
	}
	if cfg.SettlingDelay == 0 {
		cfg.SettlingDelay = 2500 * time.Millisecond
	}

	store := newFakeStore()
	follow := &fakeFollower{result: follower.Result{
		FinalURL:  "https://merchant.example/landing?clickref=clk_abc",
		Hops:      []domain.Hop{{Index: 0, URL: "https://ad.example/go"}},
		Completed: true,
	}}
	dedupe := &fakeDeduper{decision: dedup.Decision{
		ClickID: "clk_minted",
		Type:    domain.FirstClick,
	}}
	rec := recorder.New(64, logger.NewNop())
	rec.Start()
	t.Cleanup(rec.Stop)

	orch := New(store, follow, dedupe, rec, signing.NewSigner("test-secret"), cfg, logger.NewNop())

	router := gin.New()
	router.GET("/redirect", orch.HandleRedirect)
	router.GET("/track/chain", orch.HandleChainTrack)
	router.GET("/click/:clickId", orch.HandleClickByID)
	router.GET("/capture/final", orch.HandleServerCapture)
	router.POST("/capture/client", orch.HandleClientCapture)
	router.GET("/capture.js", orch.HandleCaptureScript)
	router.GET("/pixel.gif", orch.HandlePixel)
	router.POST("/links", orch.HandleMintLink)

	return &testEnv{orch: orch, store: store, follow: follow, dedupe: dedupe, rec: rec, router: router}
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postJSON(path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	e.router.ServeHTTP(w, req)
	return w
}

func TestHandleRedirectMissingParams(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.get("/redirect?url=https://ad.example/go")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing affiliate_id: got status %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = env.get("/redirect?affiliate_id=aff1")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing url: got status %d, want %d", w.Code, http.StatusBadRequest)
	}

	env.rec.Stop()
	if len(env.store.clicks) != 0 || len(env.store.statuses) != 0 {
		t.Errorf("validation failure must not record anything, got %d clicks, %d status updates",
			len(env.store.clicks), len(env.store.statuses))
	}
}

func TestHandleRedirectRejectsRelativeURL(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.get("/redirect?affiliate_id=aff1&url=/relative/path")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleRedirectFirstClick(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.get("/redirect?affiliate_id=aff1&campaign_id=camp1&url=" +
		url.QueryEscape("https://ad.example/go?x=1") + "&session_id=sess1")
	if w.Code != http.StatusFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusFound)
	}

	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, "/track/chain?") {
		t.Fatalf("expected redirect into chain tracker, got %q", loc)
	}
	parsed, err := url.Parse(loc)
	if err != nil {
		t.Fatalf("parsing Location: %v", err)
	}
	q := parsed.Query()
	if got := q.Get("click_id"); got != "clk_minted" {
		t.Errorf("click_id = %q, want clk_minted", got)
	}
	if got := q.Get("start_url"); got != "https://ad.example/go?x=1" {
		t.Errorf("start_url = %q", got)
	}

	env.rec.Stop()

	rec, ok := env.store.clicks["clk_minted"]
	if !ok {
		t.Fatal("expected click record for clk_minted")
	}
	if rec.Status != domain.StatusPending {
		t.Errorf("status = %q, want %q", rec.Status, domain.StatusPending)
	}
	if rec.CampaignID != "camp1" {
		t.Errorf("campaign_id = %q, want camp1", rec.CampaignID)
	}

	if len(env.dedupe.committed) != 1 {
		t.Fatalf("expected 1 committed session, got %d", len(env.dedupe.committed))
	}
	if env.dedupe.committed[0].SessionID != "sess1" {
		t.Errorf("committed session_id = %q, want sess1", env.dedupe.committed[0].SessionID)
	}
}

func TestHandleRedirectDirect(t *testing.T) {
	env := newTestEnv(t, Config{})

	dest := "https://ad.example/go"
	w := env.get("/redirect?affiliate_id=aff1&direct=1&url=" + url.QueryEscape(dest))
	if w.Code != http.StatusFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusFound)
	}
	if loc := w.Header().Get("Location"); loc != dest {
		t.Errorf("Location = %q, want destination %q", loc, dest)
	}

	env.rec.Stop()
	var sawRedirected bool
	for _, s := range env.store.statuses {
		if s.clickID == "clk_minted" && s.status == domain.StatusRedirected {
			sawRedirected = true
		}
	}
	if !sawRedirected {
		t.Error("direct redirect should still move the record to redirected")
	}
}

func TestHandleRedirectAlreadyProcessed(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.dedupe.decision = dedup.Decision{ClickID: "clk_old", Type: domain.AlreadyProcessed}

	w := env.get("/redirect?affiliate_id=aff1&url=" + url.QueryEscape("https://ad.example/go"))
	if w.Code != http.StatusFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusFound)
	}

	env.rec.Stop()
	if len(env.store.clicks) != 0 {
		t.Errorf("replayed session must not insert records, got %d", len(env.store.clicks))
	}
	if !strings.Contains(w.Header().Get("Location"), "click_id=clk_old") {
		t.Errorf("replayed session should still travel on its click id, got %q", w.Header().Get("Location"))
	}
}

func TestHandleRedirectBotNotRecorded(t *testing.T) {
	env := newTestEnv(t, Config{})

	router := gin.New()
	router.GET("/redirect", func(c *gin.Context) {
		c.Set("is_bot", true)
	}, env.orch.HandleRedirect)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/redirect?affiliate_id=aff1&url="+
		url.QueryEscape("https://ad.example/go"), nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("bots still get redirected: got status %d, want %d", w.Code, http.StatusFound)
	}

	env.rec.Stop()
	if len(env.store.clicks) != 0 {
		t.Errorf("bot visit must not insert records, got %d", len(env.store.clicks))
	}
}

func TestHandleRedirectSignatureRequired(t *testing.T) {
	env := newTestEnv(t, Config{RequireSignature: true})

	dest := "https://ad.example/go"

	w := env.get("/redirect?affiliate_id=aff1&url=" + url.QueryEscape(dest))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing timestamp: got status %d, want %d", w.Code, http.StatusBadRequest)
	}

	now := time.Now().Unix()
	w = env.get("/redirect?affiliate_id=aff1&url=" + url.QueryEscape(dest) +
		"&t=" + strconv.FormatInt(now, 10) + "&sig=deadbeef0000")
	if w.Code != http.StatusForbidden {
		t.Errorf("bad signature: got status %d, want %d", w.Code, http.StatusForbidden)
	}

	params := signing.TrackParams{AffiliateID: "aff1", Timestamp: now, DestinationURL: dest}
	sig := signing.NewSigner("test-secret").Sign(params.Message())
	w = env.get("/redirect?affiliate_id=aff1&url=" + url.QueryEscape(dest) +
		"&t=" + strconv.FormatInt(now, 10) + "&sig=" + sig)
	if w.Code != http.StatusFound {
		t.Errorf("valid signature: got status %d, want %d", w.Code, http.StatusFound)
	}

	stale := time.Now().Add(-25 * time.Hour).Unix()
	params.Timestamp = stale
	sig = signing.NewSigner("test-secret").Sign(params.Message())
	w = env.get("/redirect?affiliate_id=aff1&url=" + url.QueryEscape(dest) +
		"&t=" + strconv.FormatInt(stale, 10) + "&sig=" + sig)
	if w.Code != http.StatusGone {
		t.Errorf("expired link: got status %d, want %d", w.Code, http.StatusGone)
	}
}

func TestHandleChainTrack(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.get("/track/chain?click_id=clk_1&affiliate_id=aff1&start_url=" +
		url.QueryEscape("https://ad.example/go"))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, "merchant.example/landing") {
		t.Errorf("bridge page should carry the final URL, got:\n%s", body)
	}
	if !strings.Contains(body, "/pixel.gif?") {
		t.Error("bridge page should embed the tracking pixel")
	}
	if !strings.Contains(body, "http-equiv=\"refresh\"") {
		t.Error("bridge page should carry a noscript meta refresh")
	}

	env.rec.Stop()

	kinds := env.store.aggregateKinds()
	if len(kinds) != 1 || kinds[0] != domain.KindChains {
		t.Fatalf("aggregate kinds = %v, want [%s]", kinds, domain.KindChains)
	}
	entry, ok := env.store.aggregates[0].entry.(domain.ChainEntry)
	if !ok {
		t.Fatalf("aggregate entry is %T, want domain.ChainEntry", env.store.aggregates[0].entry)
	}
	if entry.FinalURL != env.follow.result.FinalURL {
		t.Errorf("entry final url = %q, want %q", entry.FinalURL, env.follow.result.FinalURL)
	}
	if entry.HopCount != len(entry.Hops) {
		t.Errorf("hop count %d does not match hops slice length %d", entry.HopCount, len(entry.Hops))
	}
}

func TestHandleChainTrackMissingParams(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.get("/track/chain?start_url=" + url.QueryEscape("https://ad.example/go"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(env.follow.calls) != 0 {
		t.Error("validation failure must not trigger chain resolution")
	}
}

func TestHandleClickByID(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.store.clicks["clk_known"] = &domain.ClickRecord{
		ClickID:     "clk_known",
		AffiliateID: "aff1",
		PreviewURL:  "https://ad.example/go?x=1",
		Status:      domain.StatusGenerated,
	}

	w := env.get("/click/clk_known")
	if w.Code != http.StatusFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusFound)
	}

	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing Location: %v", err)
	}
	q := loc.Query()
	if q.Get("click_id") != "clk_known" || q.Get("affiliate_id") != "aff1" {
		t.Errorf("tracking params missing from destination: %q", loc)
	}
	if q.Get("x") != "1" {
		t.Errorf("existing destination params must survive: %q", loc)
	}

	env.rec.Stop()
	if len(env.store.physical) != 1 || env.store.physical[0] != "clk_known" {
		t.Errorf("physical clicks = %v, want [clk_known]", env.store.physical)
	}
}

func TestHandleClickByIDUnknownFallsBack(t *testing.T) {
	env := newTestEnv(t, Config{FallbackURL: "https://fallback.example/"})

	w := env.get("/click/clk_missing")
	if w.Code != http.StatusFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusFound)
	}
	if loc := w.Header().Get("Location"); loc != "https://fallback.example/" {
		t.Errorf("Location = %q, want fallback", loc)
	}
}

func TestHandlePixelAlwaysServesGIF(t *testing.T) {
	env := newTestEnv(t, Config{})

	// No parameters at all.
	w := env.get("/pixel.gif")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/gif" {
		t.Errorf("Content-Type = %q, want image/gif", ct)
	}
	if !bytes.Equal(w.Body.Bytes(), transparentGIF) {
		t.Error("body is not the transparent GIF")
	}

	// With parameters the capture is recorded, response unchanged.
	w = env.get("/pixel.gif?affiliate_id=aff1&click_id=clk_1&final_url=" +
		url.QueryEscape("https://merchant.example/landing"))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}

	env.rec.Stop()
	kinds := env.store.aggregateKinds()
	if len(kinds) != 1 || kinds[0] != domain.KindClientFinalURLs {
		t.Errorf("aggregate kinds = %v, want [%s]", kinds, domain.KindClientFinalURLs)
	}
}

func TestHandleClientCapture(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.postJSON("/capture/client", map[string]any{
		"affiliateId": "aff1",
		"clickId":     "clk_1",
		"finalUrl":    "https://merchant.example/landing?clickref=clk_1",
		"parameters":  map[string]string{"clickref": "clk_1", "gclid": "g123"},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusAccepted)
	}

	env.rec.Stop()

	kinds := env.store.aggregateKinds()
	if len(kinds) != 2 {
		t.Fatalf("aggregate kinds = %v, want client capture plus clickref capture", kinds)
	}
	if kinds[0] != domain.KindClientFinalURLs || kinds[1] != domain.KindFinalClickref {
		t.Errorf("aggregate kinds = %v", kinds)
	}

	var sawClicked bool
	for _, s := range env.store.statuses {
		if s.clickID == "clk_1" && s.status == domain.StatusClicked {
			sawClicked = true
		}
	}
	if !sawClicked {
		t.Error("client capture should confirm the click")
	}
}

func TestHandleClientCaptureWithoutClickref(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.postJSON("/capture/client", map[string]any{
		"affiliateId": "aff1",
		"clickId":     "clk_1",
		"finalUrl":    "https://merchant.example/landing",
		"parameters":  map[string]string{"utm_source": "x"},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusAccepted)
	}

	env.rec.Stop()
	kinds := env.store.aggregateKinds()
	if len(kinds) != 1 || kinds[0] != domain.KindClientFinalURLs {
		t.Errorf("aggregate kinds = %v, want only %s", kinds, domain.KindClientFinalURLs)
	}
}

func TestHandleClientCaptureRejectsIncomplete(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.postJSON("/capture/client", map[string]any{"affiliateId": "aff1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleServerCapture(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.store.clicks["clk_1"] = &domain.ClickRecord{
		ClickID:     "clk_1",
		AffiliateID: "aff1",
		PreviewURL:  "https://ad.example/go",
		Status:      domain.StatusRedirected,
	}

	w := env.get("/capture/final?affiliate_id=aff1&click_id=clk_1")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var reply struct {
		FinalURL string `json:"final_url"`
		HopCount int    `json:"hop_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	if reply.FinalURL != env.follow.result.FinalURL {
		t.Errorf("final_url = %q, want %q", reply.FinalURL, env.follow.result.FinalURL)
	}

	env.rec.Stop()
	kinds := env.store.aggregateKinds()
	if len(kinds) != 1 || kinds[0] != domain.KindURLAnalysis {
		t.Errorf("aggregate kinds = %v, want [%s]", kinds, domain.KindURLAnalysis)
	}
}

func TestHandleServerCaptureUnknownClick(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.get("/capture/final?affiliate_id=aff1&click_id=clk_missing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleMintLink(t *testing.T) {
	env := newTestEnv(t, Config{BaseURL: "https://track.example"})

	w := env.postJSON("/links", map[string]any{
		"affiliate_id":    "aff1",
		"campaign_id":     "camp1",
		"destination_url": "https://ad.example/go",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var reply struct {
		ClickID     string `json:"click_id"`
		TrackingURL string `json:"tracking_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}

	rec, ok := env.store.clicks[reply.ClickID]
	if !ok {
		t.Fatal("minted click id has no stored record")
	}
	if rec.Status != domain.StatusGenerated {
		t.Errorf("status = %q, want %q", rec.Status, domain.StatusGenerated)
	}

	parsed, err := url.Parse(reply.TrackingURL)
	if err != nil {
		t.Fatalf("parsing tracking url: %v", err)
	}
	q := parsed.Query()
	if q.Get("click_id") != reply.ClickID {
		t.Errorf("tracking url click_id = %q, want %q", q.Get("click_id"), reply.ClickID)
	}

	ts, err := strconv.ParseInt(q.Get("t"), 10, 64)
	if err != nil {
		t.Fatalf("tracking url timestamp: %v", err)
	}
	params := signing.TrackParams{
		AffiliateID:    "aff1",
		CampaignID:     "camp1",
		Timestamp:      ts,
		DestinationURL: "https://ad.example/go",
	}
	if !signing.NewSigner("test-secret").Verify(params.Message(), q.Get("sig")) {
		t.Error("minted link signature does not verify")
	}
}

func TestHandleMintLinkRejectsBadDestination(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.postJSON("/links", map[string]any{
		"affiliate_id":    "aff1",
		"destination_url": "not-a-url",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(env.store.clicks) != 0 {
		t.Error("rejected mint must not store a record")
	}
}

func TestHandleCaptureScript(t *testing.T) {
	env := newTestEnv(t, Config{BaseURL: "https://track.example", SettlingDelay: 1500 * time.Millisecond})

	w := env.get("/capture.js")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/javascript") {
		t.Errorf("Content-Type = %q, want application/javascript", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, `"https://track.example/capture/client"`) {
		t.Error("script should target the client capture endpoint")
	}
	if !strings.Contains(body, "1500") {
		t.Error("script should carry the configured settling delay")
	}
	if !strings.Contains(body, `"clickref"`) {
		t.Error("script should gate on the clickref parameter")
	}
}
