package education

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EduScore tracks a user's learning progress. It lives outside the ledger
// core: completing lessons never touches wallet aggregates.
type EduScore struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primary_key" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Score            int64          `gorm:"not null;default:0" json:"score"`
	CompletedLessons pq.StringArray `gorm:"type:text[]" json:"completed_lessons"`
	LastUpdated      time.Time      `json:"last_updated"`
	CreatedAt        time.Time      `json:"created_at"`
}
