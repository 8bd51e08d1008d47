package domain

import "time"

// List groups subscriptions (e.g. "Work", "Family"). Subscriptions reference it weakly by id.
type List struct {
	ListID    string    `json:"id" dynamodbav:"list_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Name      string    `json:"name" dynamodbav:"name"`
	Color     string    `json:"color" dynamodbav:"color"`
	Icon      string    `json:"icon" dynamodbav:"icon"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

type ListInput struct {
	Name  string `json:"name" validate:"required,max=60"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
	Icon  string `json:"icon" validate:"max=16"`
}
