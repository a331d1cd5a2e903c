package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/orbit/pkg/db/pagination"
)

type CreateCustomerRequest struct {
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	PaymentMethod    string           `json:"payment_method"`
	BillingDay       int              `json:"billing_day,omitempty"`
	BillingFrequency BillingFrequency `json:"billing_frequency,omitempty"`
}

type ListCustomerRequest struct {
	PageToken string
	PageSize  int
	Email     string
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (Customer, error)
	GetByID(ctx context.Context, id string) (Customer, error)
	List(ctx context.Context, req ListCustomerRequest) (ListCustomerResponse, error)
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidFrequency = errors.New("invalid_billing_frequency")
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("not_found")
)
