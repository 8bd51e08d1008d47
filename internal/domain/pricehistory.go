package domain

import "time"

type PriceChangeType string

const (
	PriceIncrease PriceChangeType = "increase"
	PriceDecrease PriceChangeType = "decrease"
	PriceSwitch   PriceChangeType = "switch"
)

// PriceHistory records one price change of a subscription.
type PriceHistory struct {
	PriceHistoryID string          `json:"id" dynamodbav:"price_history_id"`
	UserID         string          `json:"user_id" dynamodbav:"user_id"`
	SubscriptionID string          `json:"subscription_id" dynamodbav:"subscription_id"`
	OldPrice       Price           `json:"old_price" dynamodbav:"old_price"`
	NewPrice       Price           `json:"new_price" dynamodbav:"new_price"`
	ChangeDate     Date            `json:"change_date" dynamodbav:"change_date"`
	ChangeType     PriceChangeType `json:"change_type" dynamodbav:"change_type"`
	Notes          string          `json:"notes,omitempty" dynamodbav:"notes,omitempty"`
	FromService    string          `json:"from_service,omitempty" dynamodbav:"from_service,omitempty"`
	CreatedAt      time.Time       `json:"created_at" dynamodbav:"created_at"`
}

type CreatePriceHistoryRequest struct {
	OldPrice    Price           `json:"old_price"`
	NewPrice    Price           `json:"new_price"`
	ChangeDate  Date            `json:"change_date"`
	ChangeType  PriceChangeType `json:"change_type" validate:"required,oneof=increase decrease switch"`
	Notes       string          `json:"notes" validate:"max=2000"`
	FromService string          `json:"from_service" validate:"max=120"`
}
