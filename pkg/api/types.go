package api

import (
	"time"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind   string
	Port   int
	APIKey string // empty disables authentication
}

// TableSummary describes one table of the catalog
type TableSummary struct {
	Name            string    `json:"name"`
	Source          string    `json:"source,omitempty"`
	Checksum        string    `json:"checksum,omitempty"`
	Signature       string    `json:"signature"`
	Records         int       `json:"records"`
	Sections        int       `json:"sections"`
	SectionsOmitted int       `json:"sections_omitted"`
	RecordsSkipped  int       `json:"records_skipped"`
	LoadedAt        time.Time `json:"loaded_at"`
}

// FieldInfo describes one schema field
type FieldInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Count    int    `json:"count"`
	ID       bool   `json:"id,omitempty"`
	Relation bool   `json:"relation,omitempty"`
	Inline   bool   `json:"inline"`
}

// SectionInfo describes one section of a table
type SectionInfo struct {
	Index     int    `json:"index"`
	KeyID     string `json:"key_id,omitempty"`
	Records   int    `json:"records"`
	Encrypted bool   `json:"encrypted"`
}

// TableDetail is a table summary with its schema and sections
type TableDetail struct {
	TableSummary
	LayoutHash  uint32        `json:"layout_hash"`
	Sparse      bool          `json:"sparse"`
	Fields      []FieldInfo   `json:"fields"`
	SectionList []SectionInfo `json:"section_list"`
}

// RecordResponse is one record with its decoded field values
type RecordResponse struct {
	ID         uint32                 `json:"id"`
	Section    int                    `json:"section"`
	Position   int                    `json:"position"`
	Encryption string                 `json:"encryption"`
	Fields     map[string]interface{} `json:"fields"`
}

// RecordPage is one page of records. Next, when set, is the identifier to
// pass as after for the following page.
type RecordPage struct {
	Records []RecordResponse `json:"records"`
	Next    *uint32          `json:"next,omitempty"`
}
