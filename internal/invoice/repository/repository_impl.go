package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orbit/internal/invoice/domain"
	"github.com/smallbiznis/orbit/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.ForUpdate(tx.WithContext(ctx)).
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at desc, id desc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) MarkPaid(ctx context.Context, tx *gorm.DB, id snowflake.ID, paymentRef string, paidAt time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, payment_ref = ?, paid_at = ?, updated_at = ? WHERE id = ?`,
		domain.StatusPaid, paymentRef, paidAt, paidAt, id,
	).Error
}

func (r *repo) DeleteByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	return tx.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id).Error
}

func (r *repo) FindSubscriptionBilling(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*domain.SubscriptionBilling, error) {
	var billing domain.SubscriptionBilling
	err := db.WithContext(ctx).Raw(
		`SELECT s.id AS subscription_id, s.customer_id, s.status, p.amount, p.currency
		 FROM subscriptions s
		 JOIN prices p ON p.id = s.price_id
		 WHERE s.id = ?`,
		subscriptionID,
	).Scan(&billing).Error
	if err != nil {
		return nil, err
	}
	if billing.SubscriptionID == 0 {
		return nil, nil
	}
	return &billing, nil
}

func (r *repo) FindCustomerRefs(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (*domain.CustomerRefs, error) {
	var refs domain.CustomerRefs
	err := db.WithContext(ctx).Raw(
		`SELECT id AS customer_id, email, provider_customer_id, payment_method_ref
		 FROM customers WHERE id = ?`,
		customerID,
	).Scan(&refs).Error
	if err != nil {
		return nil, err
	}
	if refs.CustomerID == 0 {
		return nil, nil
	}
	return &refs, nil
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

func (r *repo) CancelSubscription(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, canceledAt time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = 'canceled', auto_renew = ?, canceled_at = ?, updated_at = ?
		 WHERE id = ?`,
		false, canceledAt, canceledAt, subscriptionID,
	).Error
}
