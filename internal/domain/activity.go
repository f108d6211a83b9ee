package domain

import "time"

// ActivityAction names a recorded lifecycle event.
type ActivityAction string

// Recorded actions.
const (
	ActionPurchaseInitiated ActivityAction = "purchase.initiated"
	ActionPurchaseApproved  ActivityAction = "purchase.approved"
	ActionPurchaseDeclined  ActivityAction = "purchase.declined"
	ActionDownloadRecorded  ActivityAction = "download.recorded"
	ActionFileUpserted      ActivityAction = "file.upserted"
)

// ResourceType names the entity an activity refers to.
type ResourceType string

// Resource types referenced by the activity log.
const (
	ResourcePurchase ResourceType = "purchase"
	ResourceDownload ResourceType = "download"
	ResourceFile     ResourceType = "file"
)

// ActivityLog is an append-only audit entry. Details are explicit columns
// rather than a free-form payload; columns that do not apply to an action are
// left empty.
type ActivityLog struct {
	ID            string         `json:"id"                       gorm:"type:char(36);primaryKey"`
	ActorID       string         `json:"actor_id"                 gorm:"type:varchar(64);not null;index"`
	Action        ActivityAction `json:"action"                   gorm:"type:varchar(32);not null;index"`
	ResourceType  ResourceType   `json:"resource_type"            gorm:"type:varchar(16);not null"`
	ResourceID    string         `json:"resource_id"              gorm:"type:varchar(64);not null"`
	FileID        string         `json:"file_id,omitempty"        gorm:"type:char(36)"`
	Amount        *int64         `json:"amount,omitempty"`
	PaymentMethod string         `json:"payment_method,omitempty" gorm:"type:varchar(32)"`
	Status        string         `json:"status,omitempty"         gorm:"type:varchar(16)"`
	CreatedAt     time.Time      `json:"created_at"               gorm:"index"`
}

// TableName returns the database table name for ActivityLog.
func (ActivityLog) TableName() string { return "activity_logs" }
