package model

import (
	"strings"
	"time"
)

// ServerType is the Minecraft server distribution a server runs.
type ServerType string

const (
	ServerTypeVanilla  ServerType = "vanilla"
	ServerTypePaper    ServerType = "paper"
	ServerTypeSpigot   ServerType = "spigot"
	ServerTypeForge    ServerType = "forge"
	ServerTypeNeoForge ServerType = "neoforge"
	ServerTypeFabric   ServerType = "fabric"
)

// ServerTypes lists the supported distributions in display order.
var ServerTypes = []ServerType{
	ServerTypeSpigot, ServerTypePaper, ServerTypeVanilla,
	ServerTypeForge, ServerTypeNeoForge, ServerTypeFabric,
}

// ParseServerType normalizes user input; ok is false for unknown types.
func ParseServerType(s string) (ServerType, bool) {
	t := ServerType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ServerTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// AddonKind reports whether the type loads mods, plugins or neither.
func (t ServerType) AddonKind() AddonKind {
	switch t {
	case ServerTypeForge, ServerTypeNeoForge, ServerTypeFabric:
		return AddonMod
	case ServerTypeSpigot, ServerTypePaper:
		return AddonPlugin
	default:
		return AddonNone
	}
}

// Server is a registered game server.
type Server struct {
	Name         string     `json:"name"`
	Type         ServerType `json:"type"`
	GameVersion  string     `json:"version"`
	Directory    string     `json:"-"`
	BackupFolder string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ServerState is the lifecycle state of a server process.
type ServerState string

const (
	StateStopped   ServerState = "stopped"
	StateStarting  ServerState = "starting"
	StateRunning   ServerState = "running"
	StateCreating  ServerState = "creating"
	StateRestoring ServerState = "restoring"
)

// ServerStatus is a point-in-time snapshot of a server process.
type ServerStatus struct {
	Name        string      `json:"name"`
	Type        ServerType  `json:"type"`
	GameVersion string      `json:"version"`
	State       ServerState `json:"state"`
	Running     bool        `json:"running"`
	Operational bool        `json:"operational"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	Uptime      string      `json:"uptime,omitempty"`
	Players     []string    `json:"players"`
}
