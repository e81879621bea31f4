package domain

import "time"

// Summary is the per-file processing result returned by the pipeline.
type Summary struct {
	RowsParsed  int `json:"rows_parsed"`
	Valid       int `json:"valid"`
	Invalid     int `json:"invalid"`
	Quarantined int `json:"quarantined"`
	Alerts      int `json:"alerts"`
}

// File processing statuses recorded in metadata objects.
const (
	StatusProcessing      = "PROCESSING"
	StatusCompleted       = "COMPLETED"
	StatusDownloadFailed  = "DOWNLOAD_FAILED"
	StatusProcessorFailed = "PROCESSOR_FAILED"
	StatusUnknownSource   = "UNKNOWN_SOURCE"
)

// FileMetadata describes the processing state of one ingested file. A
// metadata object is written when processing starts and overwritten with
// final counts when it completes or fails.
type FileMetadata struct {
	FileName    string     `json:"file_name"`
	Source      SourceType `json:"source_type"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	RowsParsed  int `json:"rows_parsed"`
	Valid       int `json:"valid"`
	Invalid     int `json:"invalid"`
	Quarantined int `json:"quarantined"`
	Alerts      int `json:"alerts_generated"`
}

// Apply copies batch counts from a summary into the metadata record.
func (m *FileMetadata) Apply(s Summary) {
	m.RowsParsed = s.RowsParsed
	m.Valid = s.Valid
	m.Invalid = s.Invalid
	m.Quarantined = s.Quarantined
	m.Alerts = s.Alerts
}
