package timeline

import (
	"fmt"
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// sanitize lowercases a fragment and collapses anything outside the safe
// character set to a single dash.
func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(s, "-")
	return strings.Trim(strings.ToLower(s), "-")
}

// ImageFilename derives a storage-safe name for an uploaded image from the
// entry date, a short title fragment, and a collision-avoiding random
// suffix. ext is the bare extension without the dot.
func ImageFilename(date, title, ext string, idgen IDGenerator) string {
	const titleLimit = 24

	cleanDate := sanitize(date)
	if cleanDate == "" {
		cleanDate = "entry"
	}
	cleanTitle := sanitize(title)
	if len(cleanTitle) > titleLimit {
		cleanTitle = strings.Trim(cleanTitle[:titleLimit], "-")
	}
	if cleanTitle == "" {
		cleanTitle = "image"
	}

	suffix := idgen.New()
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}

	return fmt.Sprintf("%s_%s_%s.%s", cleanDate, cleanTitle, suffix, ext)
}

// ExtensionOf returns the lowercased extension of a client-supplied
// filename without the dot, or fallback when there is none.
func ExtensionOf(filename, fallback string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return fallback
	}
	return strings.ToLower(filename[i+1:])
}
