package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is a JSON-serialized list of strings stored in a single column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// VideoChapter is a named position in a course video.
type VideoChapter struct {
	Title     string `json:"title"`
	Timestamp string `json:"timestamp"`
}

// VideoChapters is the ordered chapter list, JSON-serialized in the product row.
type VideoChapters []VideoChapter

func (v VideoChapters) Value() (driver.Value, error) {
	if v == nil {
		v = VideoChapters{}
	}
	return json.Marshal(v)
}

func (v *VideoChapters) Scan(value interface{}) error {
	return scanJSON(value, v)
}

// Product represents a digital good in the catalog. Price 0 means the
// product is free and can be claimed without payment. The Order/Payment
// Engine treats products as read-only: prices are snapshotted into order
// line items at order-creation time.
type Product struct {
	ID            string        `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name          string        `json:"name" validate:"required,min=2,max=200"`
	Description   string        `json:"description" validate:"omitempty,max=2000"`
	Price         float64       `json:"price" validate:"gte=0"`
	Category      string        `json:"category" validate:"required,oneof=software course"`
	ImageURL      string        `json:"image_url"`
	DownloadLink  string        `json:"download_link"`
	VideoURL      string        `json:"video_url,omitempty"`
	VideoChapters VideoChapters `json:"video_chapters" gorm:"type:text"`
	Features      StringList    `json:"features" gorm:"type:text"`
	CreatedAt     time.Time     `json:"created_at"`
}

// IsFree reports whether the product can be claimed without payment.
func (p *Product) IsFree() bool {
	return p.Price == 0
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}
