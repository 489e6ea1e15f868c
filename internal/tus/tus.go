// Package tus holds the wire details of the resumable upload protocol
// shared by the client and the server.
package tus

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

const (
	Version = "1.0.0"

	HeaderResumable      = "Tus-Resumable"
	HeaderVersion        = "Tus-Version"
	HeaderExtension      = "Tus-Extension"
	HeaderMaxSize        = "Tus-Max-Size"
	HeaderUploadOffset   = "Upload-Offset"
	HeaderUploadLength   = "Upload-Length"
	HeaderUploadMetadata = "Upload-Metadata"
	HeaderUpsert         = "x-upsert"

	OffsetContentType = "application/offset+octet-stream"
	Extensions        = "creation,termination"
)

// Metadata keys understood by the server.
const (
	MetaBucket       = "bucketName"
	MetaObject       = "objectName"
	MetaContentType  = "contentType"
	MetaCacheControl = "cacheControl"
)

// EncodeMetadata renders an Upload-Metadata header value: comma separated
// "key base64(value)" pairs, sorted by key.
func EncodeMetadata(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+" "+base64.StdEncoding.EncodeToString([]byte(meta[k])))
	}
	return strings.Join(pairs, ",")
}

// ParseMetadata decodes an Upload-Metadata header value. A key without a
// value maps to the empty string.
func ParseMetadata(header string) (map[string]string, error) {
	meta := make(map[string]string)
	if strings.TrimSpace(header) == "" {
		return meta, nil
	}

	for _, pair := range strings.Split(header, ",") {
		fields := strings.Fields(pair)
		switch len(fields) {
		case 1:
			meta[fields[0]] = ""
		case 2:
			v, err := base64.StdEncoding.DecodeString(fields[1])
			if err != nil {
				return nil, fmt.Errorf("metadata %q: %w", fields[0], err)
			}
			meta[fields[0]] = string(v)
		default:
			return nil, fmt.Errorf("malformed metadata pair %q", pair)
		}
	}
	return meta, nil
}
