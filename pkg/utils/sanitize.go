package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// --- Filename Sanitization ---
var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F\x7F]`) // Characters invalid in Windows/Unix filenames
var consecutiveUnderscores = regexp.MustCompile(`_+`)                      // Pattern to replace multiple underscores with one
const maxFilenameLength = 200                                              // Max length in bytes, leaves room for an extension

// SanitizeFilename cleans a string to be safe for use as a single filename component.
// The result never contains a path separator and is never "." or "..".
func SanitizeFilename(name string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(name, "_")
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_ .")

	if len(sanitized) > maxFilenameLength {
		// Cut on a rune boundary so Cyrillic titles stay valid UTF-8
		cut := maxFilenameLength
		for cut > 0 && !utf8.RuneStart(sanitized[cut]) {
			cut--
		}
		sanitized = strings.Trim(sanitized[:cut], "_ .")
	}

	if sanitized == "" {
		sanitized = "untitled"
	}
	return sanitized
}
