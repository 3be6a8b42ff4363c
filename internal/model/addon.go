package model

// AddonKind distinguishes loader mods from Bukkit-style plugins.
type AddonKind string

const (
	AddonNone   AddonKind = ""
	AddonMod    AddonKind = "mod"
	AddonPlugin AddonKind = "plugin"
)

// Folder is the directory inside the server folder that holds the jars.
func (k AddonKind) Folder() string {
	switch k {
	case AddonMod:
		return "mods"
	case AddonPlugin:
		return "plugins"
	default:
		return ""
	}
}

// Platform is a mod hosting site.
type Platform string

const (
	PlatformModrinth   Platform = "modrinth"
	PlatformCurseForge Platform = "curseforge"
)

// ModSearchResult is one project returned by a platform search.
type ModSearchResult struct {
	Platform  Platform `json:"platform"`
	ProjectID string   `json:"project_id"`
	Name      string   `json:"name"`
	Author    string   `json:"author"`
	Summary   string   `json:"summary"`
	Downloads int64    `json:"downloads"`
	Logo      string   `json:"logo"`
	Link      string   `json:"link"`
}

// InstalledMod is a jar found in a server's mods or plugins folder.
type InstalledMod struct {
	File string `json:"file"`
	Name string `json:"name"`
}
