// Package render turns a finalized plan into a markdown newsletter preview.
// The real outbound email formatting lives outside this system; this is the
// handoff artifact.
package render

import (
	"fmt"
	"strings"

	"newsdesk/internal/core"
	"newsdesk/internal/sections"
)

// sectionTitles maps keys to display headings.
var sectionTitles = map[sections.Key]string{
	sections.Commentaries:  "Commentaries",
	sections.International: "International",
	sections.Politics:      "Politics",
	sections.Business:      "Business",
	sections.Tech:          "Tech",
	sections.Sport:         "Sport",
	sections.Culture:       "Culture",
	sections.Entertainment: "Entertainment",
	sections.Science:       "Science",
	sections.Lifestyle:     "Lifestyle",
	sections.WildCard:      "Wild Card",
}

// Markdown renders the finalized plan as a markdown newsletter.
func Markdown(plan *core.FinalPlan) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Daily Brief — %s\n\n", plan.GeneratedAt.Format("Monday, 2 January 2006"))
	if plan.Overview != "" {
		sb.WriteString(plan.Overview)
		sb.WriteString("\n\n")
	}

	if len(plan.Highlights) > 0 {
		sb.WriteString("## Top Stories\n\n")
		for _, item := range plan.Highlights {
			writeItem(&sb, item)
		}
	}

	for _, key := range sections.All() {
		items := plan.Sections[key.String()]
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n", sectionTitles[key])
		for _, item := range items {
			writeItem(&sb, item)
		}
	}

	return sb.String()
}

func writeItem(sb *strings.Builder, item core.SectionItem) {
	fmt.Fprintf(sb, "- **[%s](%s)** — %s", item.Title, item.Link, item.Summary)
	if item.Publisher != "" {
		fmt.Fprintf(sb, " _(%s)_", item.Publisher)
	}
	sb.WriteString("\n")
}
