package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BillingCycle string

const (
	CycleWeekly    BillingCycle = "weekly"
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
)

// MonthlyFactor is the multiplier that normalises one charge of the cycle to a monthly cost.
// Unknown cycles count as monthly.
func (c BillingCycle) MonthlyFactor() decimal.Decimal {
	switch c {
	case CycleWeekly:
		return decimal.NewFromInt(4)
	case CycleQuarterly:
		return decimal.NewFromInt(1).Div(decimal.NewFromInt(3))
	case CycleYearly:
		return decimal.NewFromInt(1).Div(decimal.NewFromInt(12))
	default:
		return decimal.NewFromInt(1)
	}
}

type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusTrial     SubscriptionStatus = "trial"
	StatusPaused    SubscriptionStatus = "paused"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// IsBilling reports whether the subscription still renews (active or trial).
func (s SubscriptionStatus) IsBilling() bool {
	return s == StatusActive || s == StatusTrial
}

type Category string

const (
	CategoryEntertainment Category = "entertainment"
	CategoryProductivity  Category = "productivity"
	CategoryUtilities     Category = "utilities"
	CategoryHealth        Category = "health"
	CategoryEducation     Category = "education"
	CategoryGaming        Category = "gaming"
	CategoryNews          Category = "news"
	CategorySocial        Category = "social"
	CategoryFinance       Category = "finance"
	CategoryOther         Category = "other"
)

const DefaultColor = "#22c55e"

type Subscription struct {
	SubscriptionID     string             `json:"id" dynamodbav:"subscription_id"`
	UserID             string             `json:"user_id" dynamodbav:"user_id"`
	Name               string             `json:"name" dynamodbav:"name"`
	Price              Price              `json:"price" dynamodbav:"price"`
	BillingCycle       BillingCycle       `json:"billing_cycle" dynamodbav:"billing_cycle"`
	NextBillingDate    Date               `json:"next_billing_date" dynamodbav:"next_billing_date"`
	Category           Category           `json:"category" dynamodbav:"category"`
	Status             SubscriptionStatus `json:"status" dynamodbav:"status"`
	IsFreeTrial        bool               `json:"is_free_trial" dynamodbav:"is_free_trial"`
	Color              string             `json:"color,omitempty" dynamodbav:"color,omitempty"`
	IconURL            string             `json:"icon_url,omitempty" dynamodbav:"icon_url,omitempty"`
	ReminderDaysBefore *int               `json:"reminder_days_before,omitempty" dynamodbav:"reminder_days_before,omitempty"`
	Notes              string             `json:"notes,omitempty" dynamodbav:"notes,omitempty"`
	ListID             *string            `json:"list_id,omitempty" dynamodbav:"list_id,omitempty"`
	CreatedAt          time.Time          `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" dynamodbav:"updated_at"`
}

// MonthlyCost is the price normalised to one month.
func (s *Subscription) MonthlyCost() decimal.Decimal {
	return s.Price.Mul(s.BillingCycle.MonthlyFactor())
}

type CreateSubscriptionRequest struct {
	Name               string             `json:"name" validate:"required,max=120"`
	Price              Price              `json:"price"`
	BillingCycle       BillingCycle       `json:"billing_cycle" validate:"omitempty,oneof=weekly monthly quarterly yearly"`
	NextBillingDate    Date               `json:"next_billing_date"`
	Category           Category           `json:"category" validate:"omitempty,oneof=entertainment productivity utilities health education gaming news social finance other"`
	Status             SubscriptionStatus `json:"status" validate:"omitempty,oneof=active trial paused cancelled"`
	IsFreeTrial        bool               `json:"is_free_trial"`
	Color              string             `json:"color" validate:"omitempty,hexcolor"`
	IconURL            string             `json:"icon_url" validate:"omitempty,url"`
	ReminderDaysBefore *int               `json:"reminder_days_before" validate:"omitempty,min=0,max=365"`
	Notes              string             `json:"notes" validate:"max=2000"`
	ListID             *string            `json:"list_id"`
}

type UpdateSubscriptionRequest struct {
	Name               *string             `json:"name" validate:"omitempty,min=1,max=120"`
	Price              *Price              `json:"price"`
	BillingCycle       *BillingCycle       `json:"billing_cycle" validate:"omitempty,oneof=weekly monthly quarterly yearly"`
	NextBillingDate    *Date               `json:"next_billing_date"`
	Category           *Category           `json:"category" validate:"omitempty,oneof=entertainment productivity utilities health education gaming news social finance other"`
	Status             *SubscriptionStatus `json:"status" validate:"omitempty,oneof=active trial paused cancelled"`
	IsFreeTrial        *bool               `json:"is_free_trial"`
	Color              *string             `json:"color" validate:"omitempty,hexcolor"`
	IconURL            *string             `json:"icon_url" validate:"omitempty,url"`
	ReminderDaysBefore *int                `json:"reminder_days_before" validate:"omitempty,min=0,max=365"`
	Notes              *string             `json:"notes" validate:"omitempty,max=2000"`
	ListID             *string             `json:"list_id"`
}
