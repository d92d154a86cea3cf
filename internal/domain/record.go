package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray stores a string slice as JSON in the database.
type StringArray []string

// Value implements driver.Valuer.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// AnalysisJSON stores an IntegratedAnalysis as JSON in the database.
type AnalysisJSON IntegratedAnalysis

// Value implements driver.Valuer.
func (a AnalysisJSON) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *AnalysisJSON) Scan(value interface{}) error {
	if value == nil {
		*a = AnalysisJSON{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan AnalysisJSON")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// AnalysisRecord is the persisted per-image analysis, keyed by image and
// user. It is written once, after fusion, and never updated.
type AnalysisRecord struct {
	ID           string       `gorm:"type:text;primaryKey" json:"id"`
	JobID        string       `gorm:"type:text;not null;index" json:"job_id"`
	UserID       string       `gorm:"type:text;not null;index" json:"user_id"`
	Filename     string       `gorm:"type:text;not null" json:"filename"`
	MD5Hash      string       `gorm:"type:text;index" json:"md5_hash"`
	StorageKey   string       `gorm:"type:text" json:"storage_key"`
	OptimizedURL string       `gorm:"type:text" json:"optimized_url"`
	Category     string       `gorm:"type:text;index" json:"category"`
	Subcategory  string       `gorm:"type:text" json:"subcategory"`
	Price        float64      `json:"price"`
	Analysis     AnalysisJSON `gorm:"type:text" json:"analysis"`
	ListingTitle string       `gorm:"type:text" json:"listing_title"`
	Keywords     StringArray  `gorm:"type:text" json:"keywords"`
	ProcessingMs int64        `json:"processing_ms"`
	CreatedAt    time.Time    `json:"created_at"`
}

// TableName returns the database table name for AnalysisRecord.
func (AnalysisRecord) TableName() string {
	return "analysis_records"
}

// JobRecord is the persisted audit row for one upload job. The live job
// state lives in the JobStore; this row only records submission and terminal
// outcome for history queries.
type JobRecord struct {
	ID             string         `gorm:"type:text;primaryKey" json:"id"`
	UserID         string         `gorm:"type:text;not null;index" json:"user_id"`
	Mode           ProcessingMode `gorm:"type:text" json:"mode"`
	Status         JobStatus      `gorm:"default:queued" json:"status"`
	TotalFiles     int            `gorm:"default:0" json:"total_files"`
	ProcessedFiles int            `gorm:"default:0" json:"processed_files"`
	FailedFiles    int            `gorm:"default:0" json:"failed_files"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// TableName returns the database table name for JobRecord.
func (JobRecord) TableName() string {
	return "job_records"
}
