package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Subscription, error)
	ListDue(ctx context.Context, db *gorm.DB, now time.Time) ([]*Subscription, error)
	CustomerExists(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (bool, error)
	UpdatePeriodEnd(ctx context.Context, tx *gorm.DB, id snowflake.ID, periodEnd, updatedAt time.Time) error
	MarkCanceled(ctx context.Context, tx *gorm.DB, id snowflake.ID, canceledAt time.Time) error
	DisableAutoRenew(ctx context.Context, tx *gorm.DB, id snowflake.ID, updatedAt time.Time) error
}
