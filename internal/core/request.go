package core

import (
	"fmt"
	"regexp"
	"time"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]+`)

// UploadRequest is one user initiated transfer. It lives only for the duration
// of the upload and is never persisted.
type UploadRequest struct {
	File           MediaFile
	OwnerID        string
	DestinationKey string
	CreatedAt      time.Time
}

// NewUploadRequest derives the destination key for file. An owner is required.
func NewUploadRequest(file MediaFile, ownerID string, now time.Time) (*UploadRequest, error) {
	if ownerID == "" {
		return nil, ErrNotAuthenticated
	}

	return &UploadRequest{
		File:           file,
		OwnerID:        ownerID,
		DestinationKey: DestinationKey(ownerID, file.Name, now),
		CreatedAt:      now,
	}, nil
}

// DestinationKey builds {owner}/{epochMillis}-{sanitizedName}.
func DestinationKey(ownerID, name string, at time.Time) string {
	return fmt.Sprintf("%s/%d-%s", ownerID, at.UnixMilli(), SanitizeFileName(name))
}

// SanitizeFileName collapses every run of characters outside [a-zA-Z0-9.-]
// into a single dash.
func SanitizeFileName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "-")
}
