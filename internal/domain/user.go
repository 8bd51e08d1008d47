package domain

import "time"

type User struct {
	UserID                  string                   `json:"id" dynamodbav:"user_id"`
	Email                   string                   `json:"email" dynamodbav:"email"`
	Phone                   *string                  `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	PasswordHash            string                   `json:"-" dynamodbav:"password_hash"`
	Role                    string                   `json:"role" dynamodbav:"role"`
	FirstName               string                   `json:"first_name" dynamodbav:"first_name"`
	LastName                string                   `json:"last_name" dynamodbav:"last_name"`
	Enable                  bool                     `json:"enable" dynamodbav:"enable"`
	Notifications           []Notification           `json:"notifications" dynamodbav:"notifications"`
	NotificationPreferences *NotificationPreferences `json:"notification_preferences,omitempty" dynamodbav:"notification_preferences,omitempty"`
	// NotificationsVersion counts writes of Notifications; the evaluator
	// writes conditionally on it.
	NotificationsVersion int64 `json:"-" dynamodbav:"notifications_version"`
	CreatedAt               time.Time                `json:"created" dynamodbav:"created_at"`
	UpdatedAt               time.Time                `json:"updated" dynamodbav:"updated_at"`
}

// Preferences returns the effective notification preferences, applying
// defaults when the profile has none or when reminder days were never set.
func (u *User) Preferences() NotificationPreferences {
	if u.NotificationPreferences == nil {
		return DefaultNotificationPreferences()
	}
	p := *u.NotificationPreferences
	if p.ReminderDays == nil {
		p.ReminderDays = append([]int(nil), DefaultReminderDays...)
	}
	return p
}

type CreateUserRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name"`
	Phone     *string `json:"phone" validate:"omitempty,e164"`
}

// UpdateMeRequest is a shallow partial update of the caller's profile.
type UpdateMeRequest struct {
	FirstName               *string                       `json:"first_name" validate:"omitempty,min=1"`
	LastName                *string                       `json:"last_name"`
	Phone                   *string                       `json:"phone" validate:"omitempty,e164"`
	NotificationPreferences *NotificationPreferencesInput `json:"notification_preferences"`
}
