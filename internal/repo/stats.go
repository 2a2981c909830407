// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-contact-backend/internal/domain"
)

// RecipientStats returns aggregate metadata for discoverable recipients: the
// total number of rows holding at least one identifier and the maximum
// UpdatedAt timestamp among them. When the store is empty, count is 0 and
// maxUpdatedAt is nil.
func RecipientStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Recipient{}).
		Where("aci IS NOT NULL OR e164 IS NOT NULL")

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// RegisteredCounts returns how many discoverable recipients sit in each
// directory-registration state. Reported by the /health endpoint.
func RegisteredCounts(ctx context.Context, db *gorm.DB) (map[domain.RegisteredState]int64, error) {
	type bucket struct {
		Registered domain.RegisteredState
		N          int64
	}
	var rows []bucket
	err := db.WithContext(ctx).Model(&domain.Recipient{}).
		Select("registered, COUNT(*) AS n").
		Where("aci IS NOT NULL OR e164 IS NOT NULL").
		Group("registered").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.RegisteredState]int64, len(rows))
	for _, r := range rows {
		out[r.Registered] = r.N
	}
	return out, nil
}
