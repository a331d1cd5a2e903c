package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orbit/internal/subscription/domain"
	"github.com/smallbiznis/orbit/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *domain.Subscription) error {
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	var subscription domain.Subscription
	err := db.WithContext(ctx).Where("id = ?", id).First(&subscription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subscription, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	var subscription domain.Subscription
	err := db.ForUpdate(tx.WithContext(ctx)).
		Where("id = ?", id).
		First(&subscription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subscription, nil
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, now time.Time) ([]*domain.Subscription, error) {
	var subscriptions []*domain.Subscription
	err := db.WithContext(ctx).
		Where("status = ? AND current_period_end <= ?", domain.StatusActive, now).
		Order("current_period_end asc, id asc").
		Find(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) CustomerExists(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM customers WHERE id = ?`, customerID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) UpdatePeriodEnd(ctx context.Context, tx *gorm.DB, id snowflake.ID, periodEnd, updatedAt time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE subscriptions SET current_period_end = ?, updated_at = ? WHERE id = ?`,
		periodEnd, updatedAt, id,
	).Error
}

func (r *repo) MarkCanceled(ctx context.Context, tx *gorm.DB, id snowflake.ID, canceledAt time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, auto_renew = ?, canceled_at = ?, updated_at = ?
		 WHERE id = ?`,
		domain.StatusCanceled, false, canceledAt, canceledAt, id,
	).Error
}

func (r *repo) DisableAutoRenew(ctx context.Context, tx *gorm.DB, id snowflake.ID, updatedAt time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE subscriptions SET auto_renew = ?, updated_at = ? WHERE id = ?`,
		false, updatedAt, id,
	).Error
}
