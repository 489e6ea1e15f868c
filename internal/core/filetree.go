package core

import (
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// mediaTypes covers the containers users actually pick. The system MIME table
// is not guaranteed to know them, so it is only a fallback.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
	".opus": "audio/opus",
}

// CollectMediaFiles expands parsed paths into upload candidates. Files named
// explicitly are always returned so validation can reject them with a reason;
// directories only contribute visible audio and video files. A file reached
// more than once is returned once.
func CollectMediaFiles(paths []ParsedPath) ([]MediaFile, error) {
	var out []MediaFile
	seen := make(map[string]bool)
	add := func(f MediaFile) {
		if !seen[f.Path] {
			seen[f.Path] = true
			out = append(out, f)
		}
	}

	for _, p := range paths {
		if p.Kind == PathFile {
			f, err := StatMediaFile(p.FullPath)
			if err != nil {
				return nil, err
			}
			add(f)
			continue
		}

		err := filepath.WalkDir(p.FullPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != p.FullPath && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			f, err := StatMediaFile(path)
			if err != nil {
				return err
			}
			if f.Kind() != KindOther {
				add(f)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p.FullPath, err)
		}
	}

	if len(out) == 0 {
		return nil, &ValidationError{Arg: "<files>", Cause: "no media files found"}
	}
	return out, nil
}

// StatMediaFile builds a MediaFile from a path on disk.
func StatMediaFile(path string) (MediaFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return MediaFile{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return MediaFile{
		Path:     path,
		Name:     filepath.Base(path),
		Size:     info.Size(),
		MIMEType: DetectMIME(path),
		ModTime:  info.ModTime(),
	}, nil
}

// DetectMIME resolves a MIME type by extension first, sniffing content only
// when the extension is unknown. Parameters such as charset are stripped.
func DetectMIME(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := mediaTypes[ext]; ok {
		return t
	}

	if t := mime.TypeByExtension(ext); t != "" {
		return stripParams(t)
	}

	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return stripParams(m.String())
}

func stripParams(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return t
}
