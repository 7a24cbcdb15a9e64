package render

import (
	"strings"
	"testing"
	"time"

	"foraybot/internal/model"
	"foraybot/internal/raid"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testTenant() *model.Tenant {
	t := &model.Tenant{GuildID: "g1"}
	cc := t.Category(raid.BA)
	cc.ChannelID = "c1"
	cc.EnabledHosts = []string{"ABBA+"}
	return t
}

func TestRenderSortsByPriorityThenLexicographic(t *testing.T) {
	t.Parallel()
	var g model.GroupedRuns
	g.Add("ABBA+", []model.Run{
		{ID: "r1", Type: "Reclear", Start: testNow.Add(time.Hour), Created: testNow.Add(-48 * time.Hour)},
		{ID: "r2", Type: "Fresh", Start: testNow.Add(2 * time.Hour), Created: testNow.Add(-48 * time.Hour)},
		{ID: "r3", Type: "Zeta", Start: testNow.Add(time.Hour), Created: testNow.Add(-48 * time.Hour)},
		{ID: "r4", Type: "Custom", Start: testNow.Add(time.Hour), Created: testNow.Add(-48 * time.Hour)},
	})

	body := NewText().Render(testTenant(), raid.BA, g, testNow).Body

	// Priority types ("Fresh" before "Reclear") come first; unknown types
	// follow lexicographically.
	order := []string{"Fresh", "Reclear", "Custom", "Zeta"}
	last := -1
	for _, typ := range order {
		i := strings.Index(body, "- "+typ)
		if i < 0 {
			t.Fatalf("type %s missing from output:\n%s", typ, body)
		}
		if i < last {
			t.Fatalf("type %s out of order:\n%s", typ, body)
		}
		last = i
	}
}

func TestRenderNewBadge(t *testing.T) {
	t.Parallel()
	var g model.GroupedRuns
	g.Add("ABBA+", []model.Run{
		{ID: "r1", Type: "Fresh", Start: testNow.Add(time.Hour), Created: testNow.Add(-time.Hour)},
	})

	body := NewText().Render(testTenant(), raid.BA, g, testNow).Body
	if !strings.Contains(body, "[NEW] Fresh") {
		t.Fatalf("missing NEW badge:\n%s", body)
	}
}

func TestRenderEmptySchedule(t *testing.T) {
	t.Parallel()
	body := NewText().Render(testTenant(), raid.BA, model.GroupedRuns{}, testNow).Body
	if !strings.Contains(body, "No runs scheduled") {
		t.Fatalf("missing empty-schedule text:\n%s", body)
	}
}

func TestRenderColorOverride(t *testing.T) {
	t.Parallel()
	tenant := testTenant()
	tenant.Category(raid.BA).Color = 0x00FF00

	body := NewText().Render(tenant, raid.BA, model.GroupedRuns{}, testNow).Body
	if !strings.Contains(body, "#00FF00") {
		t.Fatalf("override color not applied:\n%s", body)
	}
}

func TestRenderDeterministic(t *testing.T) {
	t.Parallel()
	var g model.GroupedRuns
	g.Add("CAFE", []model.Run{
		{ID: "r1", Type: "Fresh", Start: testNow.Add(time.Hour), Created: testNow.Add(-48 * time.Hour), DataCenter: "Aether"},
	})

	a := NewText().Render(testTenant(), raid.BA, g, testNow)
	b := NewText().Render(testTenant(), raid.BA, g, testNow)
	if a != b {
		t.Fatal("identical input rendered differently")
	}
}
