package repository

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/shinyyama/rental-backend/internal/model"
	"gorm.io/gorm"
)

var ErrDBNotReady = errors.New("database not initialized")

type TransitionLogRepository interface {
	Create(ctx context.Context, l *model.TransitionLog) error
	ListByTransaction(ctx context.Context, txID string, limit int) ([]model.TransitionLog, error)
	SetDB(db *gorm.DB)
}

// The connection is injected after startup, so the handle is read atomically.
type transitionLogRepository struct {
	db atomic.Pointer[gorm.DB]
}

func NewTransitionLogRepository(db *gorm.DB) TransitionLogRepository {
	r := &transitionLogRepository{}
	r.db.Store(db)
	return r
}

func (r *transitionLogRepository) Create(ctx context.Context, l *model.TransitionLog) error {
	db := r.db.Load()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Create(l).Error
}

func (r *transitionLogRepository) ListByTransaction(ctx context.Context, txID string, limit int) ([]model.TransitionLog, error) {
	db := r.db.Load()
	if db == nil {
		return nil, ErrDBNotReady
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var list []model.TransitionLog
	if err := db.WithContext(ctx).
		Where("transaction_id = ?", txID).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *transitionLogRepository) SetDB(db *gorm.DB) {
	r.db.Store(db)
}
