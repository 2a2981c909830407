package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-contact-backend/internal/domain"
	"github.com/tbourn/go-contact-backend/internal/search"
	"github.com/tbourn/go-contact-backend/internal/services"
)

// ---------- stubs ----------

// Flexible resolver stub; nil funcs fall back to benign defaults.
type stubResolver struct {
	resolve func(context.Context, services.ResolveInput) (services.ResolveResult, error)
	lookup  func(context.Context, domain.RecipientID) (*domain.Recipient, error)
}

func (s stubResolver) Resolve(ctx context.Context, in services.ResolveInput) (services.ResolveResult, error) {
	if s.resolve != nil {
		return s.resolve(ctx, in)
	}
	return services.ResolveResult{ID: 1, Outcome: domain.OutcomeMatch{ID: 1}}, nil
}

func (s stubResolver) Lookup(ctx context.Context, id domain.RecipientID) (*domain.Recipient, error) {
	if s.lookup != nil {
		return s.lookup(ctx, id)
	}
	return &domain.Recipient{ID: id}, nil
}

type stubReader struct {
	listPage func(context.Context, int, int) ([]domain.Recipient, int64, error)
	stats    func(context.Context) (string, error)
}

func (s stubReader) ListPage(ctx context.Context, page, pageSize int) ([]domain.Recipient, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, page, pageSize)
	}
	return nil, 0, nil
}

func (s stubReader) Stats(ctx context.Context) (string, error) {
	if s.stats != nil {
		return s.stats(ctx)
	}
	return "", nil
}

type stubDirectory struct {
	refresh func(context.Context, []services.DirectoryEntry) ([]services.DirectoryResult, error)
}

func (s stubDirectory) Refresh(ctx context.Context, entries []services.DirectoryEntry) ([]services.DirectoryResult, error) {
	if s.refresh != nil {
		return s.refresh(ctx, entries)
	}
	return nil, nil
}

type stubSync struct {
	apply  func(context.Context, services.SyncRecord) (domain.RecipientID, error)
	lookup func(context.Context, string) (*domain.Recipient, error)
}

func (s stubSync) Apply(ctx context.Context, rec services.SyncRecord) (domain.RecipientID, error) {
	if s.apply != nil {
		return s.apply(ctx, rec)
	}
	return 1, nil
}

func (s stubSync) LookupByStorageID(ctx context.Context, storageID string) (*domain.Recipient, error) {
	if s.lookup != nil {
		return s.lookup(ctx, storageID)
	}
	return &domain.Recipient{ID: 1}, nil
}

type stubRecorder struct {
	record func(ctx context.Context, callerID, scope, key string, status int) error
}

func (s stubRecorder) Record(ctx context.Context, callerID, scope, key string, status int) error {
	if s.record != nil {
		return s.record(ctx, callerID, scope, key, status)
	}
	return nil
}

func newTestHandlers(res ResolverService, rd RecipientReader, dir DirectoryService, sy SyncApplier, idx search.Index) *Handlers {
	if res == nil {
		res = stubResolver{}
	}
	if rd == nil {
		rd = stubReader{}
	}
	if dir == nil {
		dir = stubDirectory{}
	}
	if sy == nil {
		sy = stubSync{}
	}
	if idx == nil {
		idx = search.NewContactIndex()
	}
	return New(res, rd, dir, sy, idx, stubRecorder{})
}

// ---------- Resolve ----------

func TestResolve_BadJSON_InvalidIdentifiers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTestHandlers(nil, nil, nil, nil, nil)
	r := gin.New()
	r.POST("/recipients/resolve", h.Resolve)

	for _, body := range []string{
		"{bad",
		`{"aci":"not-a-uuid"}`,
		`{"e164":"415-555-0101"}`,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/recipients/resolve", bytes.NewBufferString(body))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q -> %d, want 400", body, w.Code)
		}
	}
}

func TestResolve_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotIn services.ResolveInput
	res := stubResolver{
		resolve: func(_ context.Context, in services.ResolveInput) (services.ResolveResult, error) {
			gotIn = in
			return services.ResolveResult{
				ID:      7,
				Outcome: domain.OutcomeMatchAndUpdateE164{ID: 7, NewE164: *in.E164},
			}, nil
		},
		lookup: func(_ context.Context, id domain.RecipientID) (*domain.Recipient, error) {
			e164 := "+14155550101"
			return &domain.Recipient{ID: id, E164: &e164}, nil
		},
	}
	h := newTestHandlers(res, nil, nil, nil, nil)
	r := gin.New()
	r.POST("/recipients/resolve", h.Resolve)

	w := httptest.NewRecorder()
	body := `{"aci":"3F0F9544-84B5-4A4B-9E3F-9B3C60E1C002","e164":"+14155550101","high_trust":true}`
	req := httptest.NewRequest(http.MethodPost, "/recipients/resolve", bytes.NewBufferString(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve -> %d body=%s", w.Code, w.Body.String())
	}

	if !gotIn.HighTrust || gotIn.ACI == nil || gotIn.E164 == nil {
		t.Fatalf("input not forwarded: %+v", gotIn)
	}
	if string(*gotIn.ACI) != "3f0f9544-84b5-4a4b-9e3f-9b3c60e1c002" {
		t.Fatalf("aci not canonicalized: %q", *gotIn.ACI)
	}

	var out ResolveResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.RecipientID != 7 || out.Outcome != "match_update_e164" {
		t.Fatalf("unexpected response: %+v", out)
	}
	if out.Recipient == nil || out.Recipient.ID != 7 {
		t.Fatalf("expected re-read recipient, got %+v", out.Recipient)
	}
}

func TestResolve_ErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		want int
	}{
		{services.ErrInvalidArgument, http.StatusBadRequest},
		{services.ErrConflict, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		res := stubResolver{
			resolve: func(context.Context, services.ResolveInput) (services.ResolveResult, error) {
				return services.ResolveResult{}, tc.err
			},
		}
		h := newTestHandlers(res, nil, nil, nil, nil)
		r := gin.New()
		r.POST("/recipients/resolve", h.Resolve)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/recipients/resolve", bytes.NewBufferString(`{"e164":"+14155550101"}`))
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("err %v -> %d, want %d", tc.err, w.Code, tc.want)
		}
	}
}

func TestResolve_LookupRaceStillReturnsID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	res := stubResolver{
		lookup: func(context.Context, domain.RecipientID) (*domain.Recipient, error) {
			return nil, services.ErrMissingRecipient
		},
	}
	h := newTestHandlers(res, nil, nil, nil, nil)
	r := gin.New()
	r.POST("/recipients/resolve", h.Resolve)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/recipients/resolve", bytes.NewBufferString(`{"e164":"+14155550101"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve -> %d", w.Code)
	}
	var out ResolveResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.RecipientID != 1 || out.Recipient != nil {
		t.Fatalf("expected id without body, got %+v", out)
	}
}

// ---------- Get ----------

func TestGet_InvalidID_NotFound_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	res := stubResolver{
		lookup: func(_ context.Context, id domain.RecipientID) (*domain.Recipient, error) {
			if id == 404 {
				return nil, services.ErrMissingRecipient
			}
			if id == 500 {
				return nil, errors.New("boom")
			}
			return &domain.Recipient{ID: id}, nil
		},
	}
	h := newTestHandlers(res, nil, nil, nil, nil)
	r := gin.New()
	r.GET("/recipients/:id", h.Get)

	cases := []struct {
		path string
		want int
	}{
		{"/recipients/abc", http.StatusBadRequest},
		{"/recipients/0", http.StatusBadRequest},
		{"/recipients/-3", http.StatusBadRequest},
		{"/recipients/404", http.StatusNotFound},
		{"/recipients/500", http.StatusInternalServerError},
		{"/recipients/9", http.StatusOK},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s -> %d, want %d", tc.path, w.Code, tc.want)
		}
	}
}

// ---------- List ----------

func TestList_ETag304_and_SuccessPage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rd := stubReader{
		listPage: func(_ context.Context, page, pageSize int) ([]domain.Recipient, int64, error) {
			if page != 1 || pageSize != 20 {
				t.Fatalf("unexpected pagination p=%d ps=%d", page, pageSize)
			}
			return []domain.Recipient{{ID: 1}, {ID: 2}}, 2, nil
		},
		stats: func(context.Context) (string, error) { return "2-12345", nil },
	}
	h := newTestHandlers(nil, rd, nil, nil, nil)
	r := gin.New()
	r.GET("/recipients", h.List)

	// First fetch: 200 with ETag.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/recipients", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag != `W/"2-12345"` {
		t.Fatalf("unexpected etag %q", etag)
	}
	var out ListRecipientsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Items) != 2 || out.Pagination.Total != 2 || out.Pagination.Page != 1 {
		t.Fatalf("unexpected page: %+v", out)
	}

	// Conditional refetch: 304.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/recipients", nil)
	req.Header.Set("If-None-Match", etag)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional list -> %d, want 304", w.Code)
	}
}

func TestList_ClampsAndInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rd := stubReader{
		listPage: func(_ context.Context, page, pageSize int) ([]domain.Recipient, int64, error) {
			if page != 1 || pageSize != 20 {
				t.Fatalf("expected clamped p=1 ps=20, got p=%d ps=%d", page, pageSize)
			}
			return nil, 0, errors.New("boom")
		},
	}
	h := newTestHandlers(nil, rd, nil, nil, nil)
	r := gin.New()
	r.GET("/recipients", h.List)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/recipients?page=-2&page_size=9999", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("list -> %d, want 500", w.Code)
	}
}

// ---------- Search ----------

func TestSearch_MissingQuery_and_Results(t *testing.T) {
	gin.SetMode(gin.TestMode)

	idx := search.NewContactIndex()
	idx.Upsert(1, "Ada Lovelace", "+14155550101")
	idx.Upsert(2, "Alan Turing", "+14155550102")

	h := newTestHandlers(nil, nil, nil, nil, idx)
	r := gin.New()
	r.GET("/recipients/search", h.Search)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/recipients/search", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing q -> %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/recipients/search?q=ada", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search -> %d", w.Code)
	}
	var out struct {
		Results []search.Result `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Results) != 1 || out.Results[0].ID != 1 {
		t.Fatalf("unexpected results: %+v", out.Results)
	}

	// limit clamp: out-of-range falls back to the default, still serves.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/recipients/search?q=a&limit=9999", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search with big limit -> %d", w.Code)
	}
}
