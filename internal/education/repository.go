package education

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	GetScore(userID string) (*EduScore, error)
	// CompleteLesson adds points for a lesson. Completing the same lesson
	// twice is a no-op that returns the current score.
	CompleteLesson(userID string, lessonID string, points int64) (*EduScore, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetScore(userID string) (*EduScore, error) {
	var score EduScore
	err := r.db.Where("user_id = ?", userID).First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &EduScore{UserID: uuid.MustParse(userID)}, nil
	}
	if err != nil {
		return nil, err
	}
	return &score, nil
}

func (r *repository) CompleteLesson(userID string, lessonID string, points int64) (*EduScore, error) {
	var score EduScore
	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ?", userID).First(&score).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			score = EduScore{UserID: uuid.MustParse(userID)}
			if err := tx.Create(&score).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		for _, done := range score.CompletedLessons {
			if done == lessonID {
				return nil
			}
		}

		score.CompletedLessons = append(score.CompletedLessons, lessonID)
		score.Score += points
		score.LastUpdated = time.Now().UTC()
		return tx.Save(&score).Error
	})
	if err != nil {
		return nil, err
	}
	return &score, nil
}
