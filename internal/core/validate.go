package core

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Validate checks a file against the policy before any network call: type,
// accepted kind, then size.
func Validate(f MediaFile, p Policy) error {
	kind := f.Kind()
	if kind == KindOther {
		return fmt.Errorf("%w: %q is not an audio or video file (%s)", ErrUnsupportedType, f.Name, displayMIME(f.MIMEType))
	}

	if (kind == KindVideo && !p.AcceptVideo) || (kind == KindAudio && !p.AcceptAudio) {
		return fmt.Errorf("%w: %s files are not accepted here", ErrKindNotAccepted, kind)
	}

	if f.Size > p.MaxFileBytes {
		return fmt.Errorf("%w: %q is %s, the limit is %s",
			ErrFileTooLarge, f.Name, humanize.IBytes(uint64(f.Size)), humanize.IBytes(uint64(p.MaxFileBytes)))
	}

	return nil
}

func displayMIME(t string) string {
	if t == "" {
		return "unknown type"
	}
	return t
}
