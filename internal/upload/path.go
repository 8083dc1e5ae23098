package upload

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

const fallbackCategory = "uploads"

// DerivePath builds the storage pathname for an artifact:
// {category}/{language}/[{contentID}/]{name}-{suffix}{ext}. The suffix is
// random, so two artifacts with identical logical names never collide.
// A missing category falls back to a flat uploads/ prefix without the
// language segment.
func DerivePath(category, languageCode, contentID, filename string) string {
	name, ext := splitName(filename)
	leaf := name + "-" + randomSuffix() + ext

	category = sanitizeSegment(category)
	if category == "" {
		return path.Join(fallbackCategory, leaf)
	}

	segments := []string{category}
	if languageCode = sanitizeSegment(languageCode); languageCode != "" {
		segments = append(segments, languageCode)
	}
	if contentID = sanitizeSegment(contentID); contentID != "" {
		segments = append(segments, contentID)
	}
	segments = append(segments, leaf)
	return path.Join(segments...)
}

func randomSuffix() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

func splitName(filename string) (string, string) {
	base := path.Base(strings.TrimSpace(filename))
	if base == "." || base == "/" || base == "" {
		return "artifact", ""
	}
	ext := path.Ext(base)
	name := sanitizeLeaf(strings.TrimSuffix(base, ext))
	if name == "" {
		name = "artifact"
	}
	return name, strings.ToLower(ext)
}

func sanitizeSegment(segment string) string {
	segment = strings.TrimSpace(strings.ToLower(segment))
	segment = strings.Trim(segment, "/")
	if segment == "" || segment == "." || segment == ".." {
		return ""
	}
	return sanitizeLeaf(segment)
}

// sanitizeLeaf keeps letters, digits, dashes, underscores and dots; every
// other rune becomes a dash.
func sanitizeLeaf(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
