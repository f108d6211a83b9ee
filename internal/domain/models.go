// Package domain defines the persistence models for the file marketplace:
// catalog entries, purchases, download accounting, invoices, and the activity
// log. These types are mapped with GORM and shared by the repository and
// service layers.
package domain

import (
	"time"
)

// Category groups catalog files for browsing.
type Category struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(120);not null"`
	Slug      string    `json:"slug"       gorm:"type:varchar(120);not null;uniqueIndex:ux_categories_slug"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "categories" }

// File is a catalog entry that can be browsed and, when not free, purchased.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Price: price in minor currency units (e.g. cents). Zero for free files.
//   - IsFree: free files are downloadable by anyone; IsFree implies Price == 0
//     (enforced by a CHECK constraint and by the catalog service).
//   - DownloadURL: location handed out after an authorized download is recorded;
//     never serialized in catalog listings.
//   - CategoryID: optional owning category.
type File struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	Title       string    `json:"title"        gorm:"type:varchar(255);not null"`
	Description string    `json:"description"  gorm:"type:text;not null;default:''"`
	PreviewURL  string    `json:"preview_url"  gorm:"type:varchar(1024);not null;default:''"`
	DownloadURL string    `json:"-"            gorm:"type:varchar(1024);not null;default:''"`
	CategoryID  *string   `json:"category_id"  gorm:"type:char(36);index:idx_files_category"`
	Price       int64     `json:"price"        gorm:"not null;default:0;check:chk_files_price,price >= 0"`
	IsFree      bool      `json:"is_free"      gorm:"not null;default:false;check:chk_files_free_price,(is_free = false) OR (price = 0)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for File.
func (File) TableName() string { return "files" }

// Purchase is a user's attempt to acquire a non-free file. Amount is the
// price captured at creation and is never re-read from the catalog.
//
// At most one purchase per (user_id, file_id) may be pending or approved; the
// partial unique index ux_purchases_active (created in repo.AutoMigrate)
// enforces it at the store level.
type Purchase struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	FileID        string         `json:"file_id"        gorm:"type:char(36);not null;index:idx_purchases_user_file,priority:2"`
	UserID        string         `json:"user_id"        gorm:"type:varchar(64);not null;index:idx_purchases_user_file,priority:1"`
	PaymentMethod string         `json:"payment_method" gorm:"type:varchar(32);not null"`
	Amount        int64          `json:"amount"         gorm:"not null;check:chk_purchases_amount,amount >= 0"`
	Status        PurchaseStatus `json:"status"         gorm:"type:varchar(16);not null;index;check:chk_purchases_status,status IN ('pending','approved','declined')"`
	CreatedAt     time.Time      `json:"created_at"     gorm:"index"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Purchase.
func (Purchase) TableName() string { return "purchases" }

// DownloadRecord counts authorized downloads of a file by a user. There is at
// most one row per (file_id, user_id); repeated downloads increment
// DownloadCount.
type DownloadRecord struct {
	ID               string    `json:"id"                 gorm:"type:char(36);primaryKey"`
	FileID           string    `json:"file_id"            gorm:"type:char(36);not null;uniqueIndex:ux_downloads_file_user,priority:1"`
	UserID           string    `json:"user_id"            gorm:"type:varchar(64);not null;uniqueIndex:ux_downloads_file_user,priority:2;index"`
	PurchaseID       *string   `json:"purchase_id"        gorm:"type:char(36)"`
	DownloadCount    int64     `json:"download_count"     gorm:"not null;default:0;check:chk_downloads_count,download_count >= 0"`
	LastDownloadedAt time.Time `json:"last_downloaded_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName returns the database table name for DownloadRecord.
func (DownloadRecord) TableName() string { return "file_downloads" }

// InvoiceStatus is the billing state of an invoice.
type InvoiceStatus string

// Invoice statuses.
const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Invoice is issued once for every approved purchase. Amounts are minor units.
type Invoice struct {
	ID            string        `json:"id"             gorm:"type:char(36);primaryKey"`
	InvoiceNumber string        `json:"invoice_number" gorm:"type:varchar(40);not null;uniqueIndex:ux_invoices_number"`
	PurchaseID    string        `json:"purchase_id"    gorm:"type:char(36);not null;uniqueIndex:ux_invoices_purchase"`
	UserID        string        `json:"user_id"        gorm:"type:varchar(64);not null;index"`
	Amount        int64         `json:"amount"         gorm:"not null"`
	TaxAmount     int64         `json:"tax_amount"     gorm:"not null;default:0"`
	TotalAmount   int64         `json:"total_amount"   gorm:"not null"`
	Status        InvoiceStatus `json:"status"         gorm:"type:varchar(16);not null;default:'draft'"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Invoice.
func (Invoice) TableName() string { return "invoices" }
