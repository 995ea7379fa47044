package storage

import (
	"path"
	"strings"

	"github.com/vidtube/backend/internal/ids"
)

// Key prefixes per media kind.
const (
	AvatarPrefix    = "avatars"
	CoverPrefix     = "covers"
	VideoPrefix     = "videos"
	ThumbnailPrefix = "thumbnails"
)

// ObjectKey builds a collision-free key under prefix. The owner segment is omitted when ownerID is
// empty, as during registration. Only a short alphanumeric extension survives from filename.
func ObjectKey(prefix, ownerID, filename string) string {
	name := ids.New() + extension(filename)
	if ownerID == "" {
		return path.Join(prefix, name)
	}
	return path.Join(prefix, ownerID, name)
}

func extension(filename string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, "\\", "/")))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
