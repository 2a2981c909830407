// Recipient HTTP handlers.
//
// This file exposes REST endpoints for the identity-resolution core:
//   - POST /recipients/resolve   (single resolution, e.g. envelope attribution)
//   - GET  /recipients/:id       (fetch by id, follows the remap cache)
//   - GET  /recipients           (list, paginated, ETag support)
//   - GET  /recipients/search    (contact-picker query)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-contact-backend/internal/domain"
	"github.com/tbourn/go-contact-backend/internal/search"
	"github.com/tbourn/go-contact-backend/internal/services"
	"github.com/tbourn/go-contact-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ResolverService defines the identity-resolution operations consumed by the
// HTTP layer. Implementations must be safe for concurrent use and honor the
// provided context.
type ResolverService interface {
	// Resolve runs one get-and-possibly-merge cycle.
	Resolve(ctx context.Context, in services.ResolveInput) (services.ResolveResult, error)
	// Lookup fetches a recipient by id, following remap redirects.
	Lookup(ctx context.Context, id domain.RecipientID) (*domain.Recipient, error)
}

// RecipientReader provides read access for listing and conditional responses.
type RecipientReader interface {
	// ListPage returns a page of discoverable recipients plus the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Recipient, int64, error)
	// Stats returns the aggregate (count, max updated-at) used for ETags.
	Stats(ctx context.Context) (string, error)
}

//
// DTOs
//

// ResolveRequest is the JSON payload for a single identity resolution.
type ResolveRequest struct {
	// ACI is the sender's account identifier (UUID form), if known.
	ACI string `json:"aci,omitempty" example:"3f9f2c4e-8d7a-4e4b-9c21-0a54e6e4b7b1"`
	// E164 is the sender's phone number in international format, if known.
	E164 string `json:"e164,omitempty" example:"+14155550101"`
	// HighTrust marks the source authoritative for identity linkage.
	HighTrust bool `json:"high_trust"`
	// SelfChangeAllowed permits mutations of the local user's own record.
	SelfChangeAllowed bool `json:"self_change_allowed,omitempty"`
}

// ResolveResponse reports the resolved recipient and the branch that fired.
type ResolveResponse struct {
	RecipientID int64             `json:"recipient_id"`
	Outcome     string            `json:"outcome"`
	Recipient   *domain.Recipient `json:"recipient,omitempty"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// ListRecipientsResponse is the paginated listing envelope.
type ListRecipientsResponse struct {
	Items      []domain.Recipient `json:"items"`
	Pagination Pagination         `json:"pagination"`
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the recipient core. It depends on
// abstract service interfaces to keep transport concerns separate from the
// resolution logic.
type Handlers struct {
	resolver  ResolverService
	reader    RecipientReader
	directory DirectoryService
	sync      SyncApplier
	index     search.Index
	idem      IdempotencyRecorder
}

// New constructs a Handlers instance bound to the given services. idem may be
// nil, which disables replay recording on the batch endpoints.
func New(resolver ResolverService, reader RecipientReader, dir DirectoryService, sync SyncApplier, idx search.Index, idem IdempotencyRecorder) *Handlers {
	return &Handlers{resolver: resolver, reader: reader, directory: dir, sync: sync, index: idx, idem: idem}
}

// Resolve handles POST /recipients/resolve.
func (h *Handlers) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	in := services.ResolveInput{
		HighTrust:         req.HighTrust,
		SelfChangeAllowed: req.SelfChangeAllowed,
	}
	if req.ACI != "" {
		aci, err := domain.ParseACI(req.ACI)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid aci")
			return
		}
		in.ACI = &aci
	}
	if req.E164 != "" {
		e164, err := domain.ParseE164(req.E164)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid e164")
			return
		}
		in.E164 = &e164
	}

	res, err := h.resolver.Resolve(c.Request.Context(), in)
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "at least one of aci/e164 is required")
		return
	case errors.Is(err, services.ErrConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, "resolution conflicted, retry later")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeResolveFailed, "could not resolve recipient")
		return
	}

	rec, err := h.resolver.Lookup(c.Request.Context(), res.ID)
	if err != nil {
		// The resolution committed; reply with the id even if the re-read raced.
		rec = nil
	}
	ok(c, http.StatusOK, ResolveResponse{
		RecipientID: int64(res.ID),
		Outcome:     res.Outcome.Branch(),
		Recipient:   rec,
	})
}

// Get handles GET /recipients/:id.
func (h *Handlers) Get(c *gin.Context) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid recipient id")
		return
	}

	rec, err := h.resolver.Lookup(c.Request.Context(), domain.RecipientID(id))
	switch {
	case errors.Is(err, services.ErrMissingRecipient):
		fail(c, http.StatusNotFound, ErrCodeMissingRecipient, "recipient not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load recipient")
		return
	}
	ok(c, http.StatusOK, rec)
}

// List handles GET /recipients with page/page_size query params and a cheap
// ETag derived from store stats so unchanged listings return 304.
func (h *Handlers) List(c *gin.Context) {
	page := utils.BoundedAtoi(c.Query("page"), 1, 1, 1<<30)
	pageSize := utils.BoundedAtoi(c.Query("page_size"), 20, 1, 200)

	if h.reader != nil {
		if tag, err := h.reader.Stats(c.Request.Context()); err == nil && tag != "" {
			etag := fmt.Sprintf("W/%q", tag)
			c.Header("ETag", etag)
			if c.GetHeader("If-None-Match") == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.reader.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list recipients")
		return
	}
	ok(c, http.StatusOK, ListRecipientsResponse{
		Items:      items,
		Pagination: Pagination{Page: page, PageSize: pageSize, Total: total},
	})
}

// Search handles GET /recipients/search?q=…&limit=….
func (h *Handlers) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing query parameter q")
		return
	}
	limit := utils.BoundedAtoi(c.Query("limit"), 25, 1, 100)
	ok(c, http.StatusOK, gin.H{"results": h.index.Query(q, limit)})
}
