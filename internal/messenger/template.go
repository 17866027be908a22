package messenger

import "strings"

// RenderTemplate substitutes the {channel} and {title} placeholders in a
// notification template. Unknown placeholders pass through untouched.
func RenderTemplate(template, channel, title string) string {
	return strings.NewReplacer(
		"{channel}", channel,
		"{title}", title,
	).Replace(template)
}
