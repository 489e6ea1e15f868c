package core

// UploadPath is the transfer strategy chosen for a file.
type UploadPath int

const (
	PathDirect UploadPath = iota
	PathResumable
)

func (p UploadPath) String() string {
	switch p {
	case PathDirect:
		return "direct"
	case PathResumable:
		return "resumable"
	default:
		return "unknown"
	}
}

// SelectPath routes files strictly larger than the threshold to the resumable
// path. It only looks at size.
func SelectPath(size int64, p Policy) UploadPath {
	if size > p.SizeThresholdBytes {
		return PathResumable
	}
	return PathDirect
}
