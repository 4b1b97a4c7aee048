package relay

import (
	"path/filepath"
	"strings"

	"github.com/tinyland-inc/crosswire/pkg/bus"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".wmv": true,
}

// Classify maps a filename and optional content-type hint to a delivery kind.
// The hint wins when it carries an image/ or video/ prefix; otherwise the
// file extension decides. Every input maps to exactly one kind.
func Classify(filename, contentTypeHint string) bus.AttachmentKind {
	hint := strings.ToLower(strings.TrimSpace(contentTypeHint))
	switch {
	case strings.HasPrefix(hint, "image"):
		return bus.KindImage
	case strings.HasPrefix(hint, "video"):
		return bus.KindVideo
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case imageExts[ext]:
		return bus.KindImage
	case videoExts[ext]:
		return bus.KindVideo
	default:
		return bus.KindFile
	}
}
