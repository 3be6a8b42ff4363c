package auth

import "sort"

// Permission names exposed to the panel. Each maps to the minimum user level.
const (
	PermViewServers     = "view_servers"
	PermViewConsole     = "view_console"
	PermCreateBackup    = "create_backup"
	PermControlServers  = "control_servers"
	PermManageMods      = "manage_mods"
	PermManageSchedules = "manage_schedules"
	PermSendCommands    = "send_commands"
	PermEditProperties  = "edit_properties"
	PermRestoreBackup   = "restore_backup"
	PermCreateServer    = "create_server"
	PermDeleteServer    = "delete_server"
)

// MaxLevel is the level of the built-in administrator.
const MaxLevel = 5

var permissionSet = map[string]int{
	PermViewServers:     1,
	PermViewConsole:     2,
	PermCreateBackup:    2,
	PermControlServers:  3,
	PermManageMods:      3,
	PermManageSchedules: 3,
	PermSendCommands:    4,
	PermEditProperties:  4,
	PermRestoreBackup:   4,
	PermCreateServer:    5,
	PermDeleteServer:    5,
}

// PermissionSet returns a copy of the name to level mapping.
func PermissionSet() map[string]int {
	out := make(map[string]int, len(permissionSet))
	for k, v := range permissionSet {
		out[k] = v
	}
	return out
}

// Level returns the minimum level for a permission; unknown names require MaxLevel.
func Level(name string) int {
	if lvl, ok := permissionSet[name]; ok {
		return lvl
	}
	return MaxLevel
}

// Granted lists the permissions a level holds, sorted by name.
func Granted(level int) []string {
	out := make([]string, 0, len(permissionSet))
	for name, lvl := range permissionSet {
		if level >= lvl {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
