package core

import (
	"os"
	"path/filepath"
)

type PathKind int

const (
	PathFile PathKind = iota
	PathDir
)

type ParsedPath struct {
	FullPath string
	Kind     PathKind
}

// ParseArgs resolves command line paths. Anything that is neither a regular
// file nor a directory is rejected, and repeated paths are dropped.
func ParseArgs(args []string) ([]ParsedPath, error) {
	if len(args) == 0 {
		return nil, &ValidationError{Arg: "<files>", Cause: "no files provided"}
	}

	seen := make(map[string]bool, len(args))
	var out []ParsedPath

	for _, raw := range args {
		p := filepath.Clean(raw)
		info, err := os.Stat(p)
		if err != nil {
			return nil, &ValidationError{Arg: raw, Cause: "not found or not accessible"}
		}

		var kind PathKind
		switch {
		case info.IsDir():
			kind = PathDir
		case info.Mode().IsRegular():
			kind = PathFile
		default:
			return nil, &ValidationError{Arg: raw, Cause: "not a regular file"}
		}

		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, ParsedPath{FullPath: p, Kind: kind})
	}

	return out, nil
}
