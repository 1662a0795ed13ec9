package utils

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy     = sync.OnceValue(bluemonday.StrictPolicy)
	unsafeCharsStrip = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "")
)

// SanitizeText strips markup from s, drops characters that are unsafe to echo
// back into HTML or SQL contexts and trims the result.
func SanitizeText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	cleaned := strictPolicy().Sanitize(s)
	// bluemonday escapes entities; decode them so the remaining unsafe
	// characters can be removed instead of being kept in escaped form.
	cleaned = html.UnescapeString(cleaned)
	cleaned = unsafeCharsStrip.Replace(cleaned)

	return strings.TrimSpace(cleaned)
}
