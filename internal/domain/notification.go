package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type NotificationType string

const (
	NotificationPayment NotificationType = "payment"
	NotificationTrial   NotificationType = "trial"
)

// MaxNotifications is how many notifications a profile keeps; older ones are dropped on write.
const MaxNotifications = 50

// Notification is an in-app reminder stored on the user profile.
type Notification struct {
	ID             string           `json:"id" dynamodbav:"id"`
	SubscriptionID string           `json:"subscription_id" dynamodbav:"subscription_id"`
	DayOffset      int              `json:"day_offset" dynamodbav:"day_offset"`
	Type           NotificationType `json:"type" dynamodbav:"type"`
	Title          string           `json:"title" dynamodbav:"title"`
	Message        string           `json:"message" dynamodbav:"message"`
	CreatedAt      time.Time        `json:"created_at" dynamodbav:"created_at"`
	Read           bool             `json:"read" dynamodbav:"read"`
}

// ReminderKey identifies one reminder: a subscription at a given number of days
// before its billing date. At most one notification exists per key.
type ReminderKey struct {
	SubscriptionID string
	DayOffset      int
}

// String renders the key as the notification id, "{subscription_id}-{day_offset}".
func (k ReminderKey) String() string {
	return fmt.Sprintf("%s-%d", k.SubscriptionID, k.DayOffset)
}

// ParseReminderKey splits id on its last "-" (or "--" for a negative offset).
func ParseReminderKey(id string) (ReminderKey, bool) {
	i := strings.LastIndex(id, "-")
	if i <= 0 || i == len(id)-1 {
		return ReminderKey{}, false
	}
	if id[i-1] == '-' && i > 1 {
		i--
	}
	days, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return ReminderKey{}, false
	}
	return ReminderKey{SubscriptionID: id[:i], DayOffset: days}, true
}

// Key returns the reminder key of n. ok is false when the stored id does not
// match its structured fields, in which case only the raw id is meaningful.
func (n Notification) Key() (k ReminderKey, ok bool) {
	k = ReminderKey{SubscriptionID: n.SubscriptionID, DayOffset: n.DayOffset}
	return k, n.SubscriptionID != "" && k.String() == n.ID
}

// UnreadCount counts notifications with read=false.
func UnreadCount(notifications []Notification) int {
	n := 0
	for _, item := range notifications {
		if !item.Read {
			n++
		}
	}
	return n
}

// NotificationPreferences is embedded in the user profile. A nil ReminderDays
// means "not set" and falls back to the default thresholds; an empty slice disables reminders.
type NotificationPreferences struct {
	Enabled      bool  `json:"enabled" dynamodbav:"enabled"`
	EmailEnabled bool  `json:"email_enabled" dynamodbav:"email_enabled"`
	InAppEnabled bool  `json:"in_app_enabled" dynamodbav:"in_app_enabled"`
	SMSEnabled   bool  `json:"sms_enabled" dynamodbav:"sms_enabled"`
	ReminderDays []int `json:"reminder_days" dynamodbav:"reminder_days"`
}

// DefaultReminderDays are the thresholds used when none are configured.
var DefaultReminderDays = []int{3, 1}

// DefaultNotificationPreferences: everything on except SMS, reminders at 3 and 1 days.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Enabled:      true,
		EmailEnabled: true,
		InAppEnabled: true,
		ReminderDays: append([]int(nil), DefaultReminderDays...),
	}
}

// HasReminderDay reports whether days is one of the configured thresholds.
func (p NotificationPreferences) HasReminderDay(days int) bool {
	for _, d := range p.ReminderDays {
		if d == days {
			return true
		}
	}
	return false
}

// ChannelsDisabled is true when neither in-app nor email delivery is wanted.
func (p NotificationPreferences) ChannelsDisabled() bool {
	return !p.InAppEnabled && !p.EmailEnabled
}

type NotificationPreferencesInput struct {
	Enabled      *bool `json:"enabled"`
	EmailEnabled *bool `json:"email_enabled"`
	InAppEnabled *bool `json:"in_app_enabled"`
	SMSEnabled   *bool `json:"sms_enabled"`
	ReminderDays []int `json:"reminder_days" validate:"omitempty,max=10,unique,dive,min=-365,max=365"`
}
