package report

import "strings"

// Body returns the entry text ready for Markdown: pretty-printed JSON is
// fenced so renderers keep its layout.
func (e Entry) Body() string {
	trimmed := strings.TrimSpace(e.Text)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return "```json\n" + trimmed + "\n```"
	}
	return trimmed
}

// Markdown renders entries as consecutive level-two sections.
func Markdown(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(e.Label)
		b.WriteString("\n\n")
		b.WriteString(e.Body())
	}
	return b.String()
}
