// Package render turns a tenant's grouped runs into the opaque payload
// handed to the transport. Rendering is pure; identical input yields an
// identical payload.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"foraybot/internal/changedetect"
	"foraybot/internal/model"
	"foraybot/internal/raid"
	"foraybot/internal/transport"
)

// Renderer produces the published content for one tenant/category.
type Renderer interface {
	Render(t *model.Tenant, category raid.Category, grouped model.GroupedRuns, now time.Time) transport.Content
}

// Text is the default renderer. It emits a plain-text schedule: one
// section per source in fetch order, runs sorted by the category's
// sub-type priority.
type Text struct{}

func NewText() Text { return Text{} }

func (Text) Render(t *model.Tenant, category raid.Category, grouped model.GroupedRuns, now time.Time) transport.Content {
	var b strings.Builder

	color := raid.AccentColor(category)
	if cc := t.Categories[category]; cc != nil && cc.Color != model.ColorUnset {
		color = cc.Color
	}
	fmt.Fprintf(&b, "# %s Schedule [#%06X]\n", raid.Name(category), color)

	if grouped.Empty() {
		b.WriteString("\nNo runs scheduled. Check back later!\n")
	} else {
		priority := priorityIndex(category)
		for _, source := range grouped.Order {
			runs := grouped.Runs[source]
			if len(runs) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n## %s", source)
			if link := raid.InviteLink(source); link != "" {
				fmt.Fprintf(&b, " <%s>", link)
			}
			b.WriteByte('\n')

			for _, r := range sortRuns(runs, priority) {
				writeRun(&b, r, now)
			}
		}
	}

	return transport.Content{
		Body: b.String(),
		Key:  t.GuildID + "/" + string(category),
	}
}

func writeRun(b *strings.Builder, r model.Run, now time.Time) {
	b.WriteString("- ")
	if changedetect.IsNew(r, now) {
		b.WriteString("[NEW] ")
	}
	fmt.Fprintf(b, "%s @ %s", r.Type, r.Start.UTC().Format("Mon Jan 2 15:04 MST"))
	if r.DataCenter != "" {
		fmt.Fprintf(b, " (%s)", r.DataCenter)
	}
	if r.ReferenceLink != "" {
		fmt.Fprintf(b, " <%s>", r.ReferenceLink)
	}
	b.WriteByte('\n')
}

// priorityIndex maps each sub-type label to its rank in the category's
// priority list. Unknown labels sort after known ones.
func priorityIndex(category raid.Category) map[string]int {
	idx := make(map[string]int)
	for i, typ := range raid.RunTypePriority(category) {
		idx[typ] = i
	}
	return idx
}

func sortRuns(runs []model.Run, priority map[string]int) []model.Run {
	out := append([]model.Run(nil), runs...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := rank(priority, out[i].Type), rank(priority, out[j].Type)
		if pi != pj {
			return pi < pj
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func rank(priority map[string]int, typ string) int {
	if r, ok := priority[typ]; ok {
		return r
	}
	return len(priority)
}
