package archive

import (
	"strings"
	"time"
)

// DeliveryMethod partitions the archive tree by how the artifact left the
// system.
type DeliveryMethod string

const (
	DeliveryDownload DeliveryMethod = "Download"
	DeliveryEmail    DeliveryMethod = "Email"
)

// Record is the database row referencing a persisted artifact. Best-effort
// invariant: the file at FilePath exists and its SHA-256 equals
// ChecksumSHA256. Violations mean corruption or an orphan and are detected
// reactively, never assumed.
type Record struct {
	ID              string
	ReportID        string
	Filename        string
	FilePath        string
	CreatedAt       time.Time
	RelatedEntityID string
	FileSizeBytes   int64
	ChecksumSHA256  string
	UserID          string
}

// SaveMetadata carries the caller-supplied attributes of a permanent
// archival save.
type SaveMetadata struct {
	ReportID        string
	Format          string
	Category        string
	Delivery        DeliveryMethod
	RelatedEntityID string
	UserID          string
}

// safeCategory uppercases the report category and replaces spaces so it can
// serve as a directory segment.
func safeCategory(category string) string {
	return strings.ReplaceAll(strings.ToUpper(category), " ", "_")
}

// safeExt normalizes a format name into a file extension.
func safeExt(format string) string {
	return strings.ReplaceAll(strings.ToLower(format), ".", "")
}

// withExt appends the format extension unless the filename already carries
// it.
func withExt(filename, format string) string {
	ext := safeExt(format)
	if ext == "" || strings.HasSuffix(strings.ToLower(filename), "."+ext) {
		return filename
	}
	return filename + "." + ext
}
