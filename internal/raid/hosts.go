package raid

// HostServer describes one upstream organization whose announced runs can
// be shown on a tenant's schedule.
type HostServer struct {
	Name       string
	Acronym    string
	InviteLink string
	// Categories lists which schedules this host announces runs for.
	Categories []Category
}

var hostServers = []HostServer{
	{Name: "ABBA+", Acronym: "ABBA+", InviteLink: "https://discord.gg/abbaffxiv", Categories: []Category{BA, FT, DRS}},
	{Name: "CAFE", Acronym: "CAFE", InviteLink: "https://discord.gg/c-a-f-e", Categories: []Category{BA, FT, DRS}},
	{Name: "CEM", Acronym: "CEM", InviteLink: "https://discord.gg/cem", Categories: []Category{FT, DRS}},
	{Name: "Content Achievers", Acronym: "CA", InviteLink: "https://discord.gg/FJFxr2U", Categories: []Category{BA, DRS}},
	{Name: "Dynamis Field Operations", Acronym: "DFO", InviteLink: "https://discord.gg/vjwYEeubeN", Categories: []Category{BA, FT, DRS}},
}

// HostsFor returns the host names that announce runs for c, in registry
// order. This drives both host selection during setup and feed fetching.
func HostsFor(c Category) []string {
	var out []string
	for _, h := range hostServers {
		for _, hc := range h.Categories {
			if hc == c {
				out = append(out, h.Name)
				break
			}
		}
	}
	return out
}

// ValidHost reports whether name is a registered host for category c.
func ValidHost(name string, c Category) bool {
	for _, h := range hostServers {
		if h.Name != name {
			continue
		}
		for _, hc := range h.Categories {
			if hc == c {
				return true
			}
		}
	}
	return false
}

// InviteLink returns the invite link for a host ("" when unknown).
func InviteLink(name string) string {
	for _, h := range hostServers {
		if h.Name == name {
			return h.InviteLink
		}
	}
	return ""
}
