package models

// PageStatus is the final classification of a URL in a crawl report
type PageStatus string

const (
	PageStatusUnset      PageStatus = ""           // Zero value = unset/unknown
	PageStatusDownloaded PageStatus = "downloaded" // Page downloaded (link extraction may still have failed)
	PageStatusFailed     PageStatus = "failed"     // Download failed or URL was malformed
)

// String implements fmt.Stringer for logging
func (s PageStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known value
func (s PageStatus) IsValid() bool {
	switch s {
	case PageStatusDownloaded, PageStatusFailed:
		return true
	}
	return false
}

// JobStatus represents the current state of a background crawl job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the job can no longer change state
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
