package models

import (
	"time"

	"github.com/google/uuid"
)

// WebDAVConfig configures a webdav-type Source.
type WebDAVConfig struct {
	ServerURL string
	Username  string
	Password  string
	RootPath  string
}

// LocalFolderConfig configures a local_folder-type Source.
type LocalFolderConfig struct {
	Path string
}

// S3Config configures an s3-type Source.
type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// SourceConfig is a closed union selected by Source.Type: exactly one of its
// fields is populated, matching whichever SourceType the owning Source
// carries.
type SourceConfig struct {
	WebDAV      *WebDAVConfig
	LocalFolder *LocalFolderConfig
	S3          *S3Config
}

// Source is a configured origin the Scheduler drives sync jobs against.
type Source struct {
	ID      uuid.UUID
	Owner   string
	Name    string
	Type    SourceType
	Enabled bool
	Config  SourceConfig

	Status      SourceStatus
	LastSyncAt  *time.Time
	LastError   *string

	FilesSynced  int64
	FilesPending int64
	Bytes        int64

	AutoSync           bool
	SyncIntervalMinutes int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DueForSync reports whether s should be picked up by the scheduler's tick,
// per the interval-since-last-sync rule in the scheduler contract.
func (s *Source) DueForSync(now time.Time) bool {
	if !s.Enabled || !s.AutoSync || s.Status == SourceStatusSyncing {
		return false
	}
	if s.LastSyncAt == nil {
		return true
	}
	interval := time.Duration(s.SyncIntervalMinutes) * time.Minute
	return now.Sub(*s.LastSyncAt) >= interval
}
