package database

import "time"

// MediaFile is a row of media_files.
type MediaFile struct {
	ID        string
	UserID    string
	FileName  string
	FileURL   string
	FileType  string
	FileSize  int64
	Source    string
	Bucket    string
	ObjectKey string
	CreatedAt time.Time
}

// UploadSession is an unfinished resumable upload.
type UploadSession struct {
	ID           string
	UserID       string
	Bucket       string
	ObjectKey    string
	ContentType  string
	CacheControl string
	Upsert       bool
	Length       int64
	Offset       int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    time.Time
}

// Stats holds aggregate server statistics.
type Stats struct {
	TotalFiles     int64
	TotalBytes     int64
	VideoFiles     int64
	AudioFiles     int64
	ActiveSessions int64
	PendingBytes   int64
}
