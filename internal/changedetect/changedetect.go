// Package changedetect decides whether a tenant/category's rendered
// schedule differs from what was last published, so unchanged content is
// never re-sent.
package changedetect

import (
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"foraybot/internal/model"
	"foraybot/internal/raid"
)

// NewRunWindow is how long a run keeps its "NEW" marker after creation.
// The marker participates in the content hash, so a run crossing the
// boundary re-publishes even though its own data did not change.
const NewRunWindow = 30 * time.Hour

// emptySentinel feeds the hash when a source (or the whole category) has
// no runs, so the transition into and out of the empty state is itself a
// detectable change. Distinct from the unset (zero) baseline.
const emptySentinel = "__empty__"

// ComputeHash builds the canonical content string for one tenant/category
// and returns its FNV-64a hash. The string concatenates, per source in
// fetch order and per run in fetch order: id, sub-type, start epoch-ms and
// a NEW marker for runs created less than NewRunWindow before now.
func ComputeHash(category raid.Category, grouped model.GroupedRuns, now time.Time) uint64 {
	var b strings.Builder
	b.WriteString(string(category))
	b.WriteByte('|')

	if grouped.Empty() {
		b.WriteString(emptySentinel)
		b.WriteByte(':')
	} else {
		for _, source := range grouped.Order {
			runs := grouped.Runs[source]
			if len(runs) == 0 {
				continue
			}
			b.WriteString(source)
			b.WriteByte(':')
			for _, r := range runs {
				b.WriteString(r.ID)
				b.WriteByte('|')
				b.WriteString(r.Type)
				b.WriteByte('|')
				b.WriteString(strconv.FormatInt(r.Start.UnixMilli(), 10))
				b.WriteByte('|')
				if IsNew(r, now) {
					b.WriteString("NEW")
				}
				b.WriteByte('|')
			}
		}
	}

	return hashString(b.String())
}

// IsNew reports whether the run still carries the NEW marker at now.
func IsNew(r model.Run, now time.Time) bool {
	return !r.Created.IsZero() && now.Sub(r.Created) < NewRunWindow
}

// HasChanged reports whether newHash differs from the tenant's recorded
// hash for the category. An unset baseline always counts as changed.
func HasChanged(t *model.Tenant, category raid.Category, newHash uint64) bool {
	cc := t.Categories[category]
	if cc == nil || cc.LastHash == 0 {
		return true
	}
	return cc.LastHash != newHash
}

// Commit records newHash as the current baseline. Called only after a
// successful publish.
func Commit(t *model.Tenant, category raid.Category, newHash uint64) {
	t.Category(category).LastHash = newHash
}

// hashString returns a stable 64-bit FNV-1a hash. The result is never 0
// for the inputs ComputeHash produces, so 0 can mean "unset".
func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	v := h.Sum64()
	if v == 0 {
		v = 1
	}
	return v
}
