package domain

// ImportResolution decides what happens to an incoming record whose name
// matches an existing subscription.
type ImportResolution string

const (
	ResolveSkip     ImportResolution = "skip"
	ResolveReplace  ImportResolution = "replace"
	ResolveKeepBoth ImportResolution = "keep_both"
)

// MaxImportItems bounds one import request.
const MaxImportItems = 500

// ImportItem is one incoming subscription. Absent fields take the defaults of
// a new subscription, and a missing billing date means today.
type ImportItem struct {
	Name            string             `json:"name" validate:"required,max=120"`
	Price           Price              `json:"price"`
	BillingCycle    BillingCycle       `json:"billing_cycle" validate:"omitempty,oneof=weekly monthly quarterly yearly"`
	NextBillingDate Date               `json:"next_billing_date"`
	Category        Category           `json:"category" validate:"omitempty,oneof=entertainment productivity utilities health education gaming news social finance other"`
	Status          SubscriptionStatus `json:"status" validate:"omitempty,oneof=active trial paused cancelled"`
	IsFreeTrial     bool               `json:"is_free_trial"`
	Color           string             `json:"color" validate:"omitempty,hexcolor"`
	Notes           string             `json:"notes" validate:"max=2000"`
}

// ImportConflict pairs an incoming record with the existing subscription of
// the same name, compared case-insensitively.
type ImportConflict struct {
	Index      int              `json:"index"`
	Existing   Subscription     `json:"existing"`
	Incoming   ImportItem       `json:"incoming"`
	Resolution ImportResolution `json:"resolution"`
}

type ImportPreview struct {
	Ready     []ImportItem     `json:"ready"`
	Conflicts []ImportConflict `json:"conflicts"`
}

// ConflictResolution answers the conflict at Index of the preview.
type ConflictResolution struct {
	Index      int              `json:"index" validate:"min=0"`
	Resolution ImportResolution `json:"resolution" validate:"required,oneof=skip replace keep_both"`
}

// ImportRequest also accepts an export document as is; its exported_at and
// version fields are ignored.
type ImportRequest struct {
	Subscriptions []ImportItem         `json:"subscriptions" validate:"required,min=1,max=500,dive"`
	Resolutions   []ConflictResolution `json:"resolutions" validate:"omitempty,dive"`
}

type ImportResult struct {
	Created  []Subscription `json:"created"`
	Replaced []Subscription `json:"replaced"`
	Skipped  int            `json:"skipped"`
}
