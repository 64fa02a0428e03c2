package payment

import (
	"errors"

	"gorm.io/gorm"
)

var ErrIntentNotFound = errors.New("payment intent not found")

type Repository interface {
	CreateIntent(intent *Intent) error
	GetIntent(intentID string, userID string) (*Intent, error)
	FindByProviderOrderID(orderID string) (*Intent, error)
	SetProviderOrder(intentID string, orderID string) error
	MarkStatus(intentID string, status IntentStatus, providerResponse string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateIntent(intent *Intent) error {
	return r.db.Create(intent).Error
}

func (r *repository) GetIntent(intentID string, userID string) (*Intent, error) {
	var intent Intent
	err := r.db.Where("id = ? AND user_id = ?", intentID, userID).First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindByProviderOrderID(orderID string) (*Intent, error) {
	var intent Intent
	err := r.db.Where("provider_order_id = ?", orderID).First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) SetProviderOrder(intentID string, orderID string) error {
	return r.db.Model(&Intent{}).Where("id = ?", intentID).Update("provider_order_id", orderID).Error
}

func (r *repository) MarkStatus(intentID string, status IntentStatus, providerResponse string) error {
	return r.db.Model(&Intent{}).Where("id = ?", intentID).Updates(map[string]interface{}{
		"status":            status,
		"provider_response": providerResponse,
	}).Error
}
