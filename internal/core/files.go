package core

import (
	"strings"
	"time"
)

// MediaKind is the coarse type stored on a record.
type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
	KindOther MediaKind = ""
)

// MediaFile describes a local file selected for upload.
type MediaFile struct {
	Path     string
	Name     string
	Size     int64
	MIMEType string
	ModTime  time.Time
}

// Kind derives the media kind from the MIME type prefix.
func (f MediaFile) Kind() MediaKind {
	switch {
	case strings.HasPrefix(f.MIMEType, "video/"):
		return KindVideo
	case strings.HasPrefix(f.MIMEType, "audio/"):
		return KindAudio
	default:
		return KindOther
	}
}

// RecordKind is the type written to the record: anything that is not video is
// stored as audio, which only differs from Kind for files that skipped validation.
func (f MediaFile) RecordKind() MediaKind {
	if strings.HasPrefix(f.MIMEType, "video") {
		return KindVideo
	}
	return KindAudio
}
