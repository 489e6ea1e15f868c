package core

import "time"

// SourceUpload marks records created by this workflow.
const SourceUpload = "upload"

// MediaFileRecord is the durable metadata row written once the bytes are stored.
type MediaFileRecord struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	FileName  string    `json:"file_name"`
	FileURL   string    `json:"file_url"`
	FileType  MediaKind `json:"file_type"`
	FileSize  int64     `json:"file_size"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// NewRecord builds the record for a stored request.
func NewRecord(req *UploadRequest, publicURL string) MediaFileRecord {
	return MediaFileRecord{
		UserID:   req.OwnerID,
		FileName: req.File.Name,
		FileURL:  publicURL,
		FileType: req.File.RecordKind(),
		FileSize: req.File.Size,
		Source:   SourceUpload,
	}
}
