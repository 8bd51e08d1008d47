package dynamo

// DynamoDB attribute names used in update expressions across all repos.
const (
	fieldEnable                  = "enable"
	fieldUpdatedAt               = "updated_at"
	fieldNotifications           = "notifications"
	fieldNotificationPreferences = "notification_preferences"
	fieldNotificationsVersion    = "notifications_version"
	fieldListID                  = "list_id"
	fieldUserID                  = "user_id"
)

// GSI names.
const (
	indexEmail          = "email-index"
	indexUserID         = "user_id-index"
	indexSubscriptionID = "subscription_id-index"
)
