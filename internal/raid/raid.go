// Package raid defines the fixed set of schedule categories and the host
// servers whose announced runs feed them. Both tables are immutable and
// loaded at process start.
package raid

// Category identifies one of the fixed content classes.
type Category string

const (
	BA  Category = "BA"
	FT  Category = "FT"
	DRS Category = "DRS"
)

// Info describes one category.
type Info struct {
	Name string
	// AccentColor is the default embed accent (RGB int).
	AccentColor int
	// RunTypes is the ordered sub-type priority used when sorting grouped
	// runs for display.
	RunTypes []string
	// SourceFilter is the upstream query predicate applied when fetching
	// raw runs for this category.
	SourceFilter string
	// DefaultChannelName is used by automatic channel creation.
	DefaultChannelName string
}

const defaultAccentColor = 0xED4245

var categories = map[Category]Info{
	BA: {
		Name:               "Baldesion Arsenal",
		AccentColor:        defaultAccentColor,
		RunTypes:           []string{"Fresh", "Learning", "Standard", "Normal", "Reclear", "Non-Standard", "Frag", "Meme"},
		SourceFilter:       "DRS = 0 AND FT = 0",
		DefaultChannelName: "na-forays-ba",
	},
	FT: {
		Name:               "Forked Tower",
		AccentColor:        defaultAccentColor,
		RunTypes:           []string{"Fresh/AnyProg", "Dead Stars", "Bridges", "Marble Dragon", "Magitaur", "Clear", "Reclear"},
		SourceFilter:       "FT = 1",
		DefaultChannelName: "na-forays-ft",
	},
	DRS: {
		Name:               "Delubrum Reginae Savage",
		AccentColor:        defaultAccentColor,
		RunTypes:           []string{"Fresh/AnyProg", "Queen's Guard", "Trinity Avowed", "The Queen", "Reclear"},
		SourceFilter:       "DRS = 1",
		DefaultChannelName: "na-forays-drs",
	},
}

// order keeps enumeration deterministic across the process.
var order = []Category{BA, FT, DRS}

// All returns every category in declaration order.
func All() []Category {
	out := make([]Category, len(order))
	copy(out, order)
	return out
}

// Valid reports whether c names a known category.
func Valid(c Category) bool {
	_, ok := categories[c]
	return ok
}

// Name returns the display name, falling back to the raw identifier.
func Name(c Category) string {
	if info, ok := categories[c]; ok {
		return info.Name
	}
	return string(c)
}

// AccentColor returns the default display color for c.
func AccentColor(c Category) int {
	if info, ok := categories[c]; ok {
		return info.AccentColor
	}
	return defaultAccentColor
}

// RunTypePriority returns the ordered sub-type list for c. The slice is a
// copy; callers may reorder it.
func RunTypePriority(c Category) []string {
	info, ok := categories[c]
	if !ok {
		return nil
	}
	out := make([]string, len(info.RunTypes))
	copy(out, info.RunTypes)
	return out
}

// SourceFilter returns the fetch predicate for c ("1=1" when unknown).
func SourceFilter(c Category) string {
	if info, ok := categories[c]; ok {
		return info.SourceFilter
	}
	return "1=1"
}

// DefaultChannelName returns the channel name used by auto-creation.
func DefaultChannelName(c Category) string {
	if info, ok := categories[c]; ok {
		return info.DefaultChannelName
	}
	return "na-forays-" + string(c)
}
