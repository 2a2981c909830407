// Directory and storage-sync HTTP handlers.
//
//   - POST /directory/refresh  (apply a batch of discovery results)
//   - POST /sync/records       (apply remote contact records)
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-contact-backend/internal/domain"
	"github.com/tbourn/go-contact-backend/internal/http/middleware"
	"github.com/tbourn/go-contact-backend/internal/services"
)

// DirectoryService applies discovery batches to the recipient store.
type DirectoryService interface {
	Refresh(ctx context.Context, entries []services.DirectoryEntry) ([]services.DirectoryResult, error)
}

// SyncApplier applies remote contact records to the recipient store and
// reads back the row a storage id currently maps to.
type SyncApplier interface {
	Apply(ctx context.Context, rec services.SyncRecord) (domain.RecipientID, error)
	LookupByStorageID(ctx context.Context, storageID string) (*domain.Recipient, error)
}

// IdempotencyRecorder persists a processed (caller, scope, key) tuple so the
// validator middleware recognizes a retried batch and the handler can skip
// re-executing its side effects.
type IdempotencyRecorder interface {
	Record(ctx context.Context, callerID, scope, key string, status int) error
}

// HeaderIdempotencyReplayed marks a response served from a recognized retry
// without re-applying the batch.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// serveReplay short-circuits a recognized retry. The batch endpoints do not
// persist response payloads, so a replay acknowledges the earlier application
// with an empty result set; callers treat the header as "already applied".
func serveReplay(c *gin.Context, body any) bool {
	if !middleware.IsReplay(c) {
		return false
	}
	c.Header(HeaderIdempotencyReplayed, "true")
	ok(c, http.StatusOK, body)
	return true
}

// recordIdempotency stores the key after a successful batch. Best effort: a
// failed write only means the retry will re-run the (idempotent) resolution.
func (h *Handlers) recordIdempotency(c *gin.Context, status int) {
	if h.idem == nil {
		return
	}
	key, hasKey := middleware.GetIdempotencyKey(c)
	if !hasKey {
		return
	}
	_ = h.idem.Record(c.Request.Context(), middleware.CallerID(c), c.FullPath(), key, status)
}

//
// DTOs
//

// DirectoryEntryRequest is one discovery result in a refresh batch.
type DirectoryEntryRequest struct {
	E164 string `json:"e164" binding:"required" example:"+14155550101"`
	// ACI is empty when the number is not registered.
	ACI string `json:"aci,omitempty"`
}

// DirectoryRefreshRequest is the JSON payload for POST /directory/refresh.
type DirectoryRefreshRequest struct {
	Entries []DirectoryEntryRequest `json:"entries" binding:"required"`
}

// DirectoryEntryResult reports the outcome for one refreshed number.
type DirectoryEntryResult struct {
	E164        string `json:"e164"`
	RecipientID int64  `json:"recipient_id"`
	ACI         string `json:"aci,omitempty"`
	Registered  bool   `json:"registered"`
	// Skipped is set when the entry could not be applied (e.g. a
	// resolution conflict) and should be retried in a later batch.
	Skipped bool `json:"skipped,omitempty"`
}

// DirectoryRefreshResponse is the refresh envelope.
type DirectoryRefreshResponse struct {
	Results []DirectoryEntryResult `json:"results"`
}

// SyncRecordRequest is one remote contact record.
type SyncRecordRequest struct {
	StorageID         string  `json:"storage_id" binding:"required"`
	ACI               string  `json:"aci,omitempty"`
	E164              string  `json:"e164,omitempty"`
	Name              string  `json:"name,omitempty"`
	ProfileKey        *string `json:"profile_key,omitempty"`
	Blocked           bool    `json:"blocked"`
	ProfileSharing    bool    `json:"profile_sharing"`
	MuteUntil         int64   `json:"mute_until"`
	MessageExpirySecs int     `json:"message_expiry_secs"`
}

// SyncApplyRequest is the JSON payload for POST /sync/records.
type SyncApplyRequest struct {
	Records []SyncRecordRequest `json:"records" binding:"required"`
}

// SyncApplyResult reports where one record landed.
type SyncApplyResult struct {
	StorageID   string `json:"storage_id"`
	RecipientID int64  `json:"recipient_id"`
	Skipped     bool   `json:"skipped,omitempty"`
}

// SyncApplyResponse is the sync envelope.
type SyncApplyResponse struct {
	Results []SyncApplyResult `json:"results"`
}

// DirectoryRefresh handles POST /directory/refresh.
func (h *Handlers) DirectoryRefresh(c *gin.Context) {
	if serveReplay(c, DirectoryRefreshResponse{Results: []DirectoryEntryResult{}}) {
		return
	}

	var req DirectoryRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if len(req.Entries) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "entries must not be empty")
		return
	}

	entries := make([]services.DirectoryEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		e164, err := domain.ParseE164(e.E164)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid e164: "+e.E164)
			return
		}
		entry := services.DirectoryEntry{E164: e164}
		if e.ACI != "" {
			aci, err := domain.ParseACI(e.ACI)
			if err != nil {
				fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid aci for "+e.E164)
				return
			}
			entry.ACI = &aci
		}
		entries = append(entries, entry)
	}

	results, err := h.directory.Refresh(c.Request.Context(), entries)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeRefreshFailed, "directory refresh failed")
		return
	}

	out := make([]DirectoryEntryResult, 0, len(results))
	for _, r := range results {
		res := DirectoryEntryResult{
			E164:        string(r.E164),
			RecipientID: int64(r.RecipientID),
			Registered:  r.Registered,
			Skipped:     r.RecipientID == 0,
		}
		if r.ACI != nil {
			res.ACI = string(*r.ACI)
		}
		out = append(out, res)
	}
	h.recordIdempotency(c, http.StatusOK)
	ok(c, http.StatusOK, DirectoryRefreshResponse{Results: out})
}

// SyncApply handles POST /sync/records.
func (h *Handlers) SyncApply(c *gin.Context) {
	if serveReplay(c, SyncApplyResponse{Results: []SyncApplyResult{}}) {
		return
	}

	var req SyncApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if len(req.Records) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "records must not be empty")
		return
	}

	out := make([]SyncApplyResult, 0, len(req.Records))
	for _, rr := range req.Records {
		rec := services.SyncRecord{
			StorageID:         rr.StorageID,
			ProfileName:       rr.Name,
			ProfileKey:        rr.ProfileKey,
			Blocked:           rr.Blocked,
			ProfileSharing:    rr.ProfileSharing,
			MuteUntil:         rr.MuteUntil,
			MessageExpirySecs: rr.MessageExpirySecs,
		}
		if rr.ACI != "" {
			aci, err := domain.ParseACI(rr.ACI)
			if err != nil {
				fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid aci in record "+rr.StorageID)
				return
			}
			rec.ACI = &aci
		}
		if rr.E164 != "" {
			e164, err := domain.ParseE164(rr.E164)
			if err != nil {
				fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid e164 in record "+rr.StorageID)
				return
			}
			rec.E164 = &e164
		}

		id, err := h.sync.Apply(c.Request.Context(), rec)
		switch {
		case errors.Is(err, services.ErrInvalidArgument):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "record "+rr.StorageID+" has no identifiers")
			return
		case errors.Is(err, services.ErrConflict):
			// Conflicts are per-record; report and continue the batch.
			out = append(out, SyncApplyResult{StorageID: rr.StorageID, Skipped: true})
			continue
		case err != nil:
			fail(c, http.StatusInternalServerError, ErrCodeSyncFailed, "could not apply record "+rr.StorageID)
			return
		}
		out = append(out, SyncApplyResult{StorageID: rr.StorageID, RecipientID: int64(id)})
	}
	h.recordIdempotency(c, http.StatusOK)
	ok(c, http.StatusOK, SyncApplyResponse{Results: out})
}

// SyncGet handles GET /sync/records/:storage_id. It answers the reverse
// question of SyncApply: which local recipient does a remote record map to
// right now. Merges can move a storage id between rows, so clients re-read
// instead of caching the pairing.
func (h *Handlers) SyncGet(c *gin.Context) {
	storageID := c.Param("storage_id")
	if storageID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing storage id")
		return
	}

	rec, err := h.sync.LookupByStorageID(c.Request.Context(), storageID)
	switch {
	case errors.Is(err, services.ErrMissingRecipient):
		fail(c, http.StatusNotFound, ErrCodeMissingRecipient, "no recipient for storage id")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not look up storage id")
		return
	}
	ok(c, http.StatusOK, rec)
}
