package content

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// sanitize strips markup and then unescapes the entities the policy
// produced: the output goes to a terminal, not an HTML context, so
// ordinary text like "1 < 2" must come through unchanged.
func sanitize(input string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(input)))
}

// SanitizeMessage strips any markup from inbound message content.
// Inbound payloads come from other clients via the server and are not
// trusted to be plain text.
func SanitizeMessage(input string) string {
	return sanitize(input)
}

// SanitizeName strips markup from display-name metadata before it is
// patched into participant records.
func SanitizeName(input string) string {
	return sanitize(input)
}
