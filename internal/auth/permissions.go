package auth

// Level is a user's access level. Higher levels include lower ones.
type Level int

// Access levels, as assigned by the web tier.
const (
	LevelViewer   Level = 1
	LevelMonitor  Level = 2
	LevelOperator Level = 3
	LevelAdmin    Level = 4
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	return l >= LevelViewer && l <= LevelAdmin
}

// Permission represents a named API capability.
type Permission string

// Permission constants.
const (
	PermSensorRead  Permission = "sensor:read"
	PermLiveFeed    Permission = "live:subscribe"
	PermStatusRead  Permission = "status:read"
	PermAlertRead   Permission = "alert:read"
	PermCommandSend Permission = "command:send"
)

// minLevel is the single source of truth for the authorisation model.
var minLevel = map[Permission]Level{
	PermSensorRead:  LevelMonitor,
	PermLiveFeed:    LevelMonitor,
	PermStatusRead:  LevelOperator,
	PermAlertRead:   LevelOperator,
	PermCommandSend: LevelAdmin,
}

// HasPermission reports whether level grants perm. Unknown permissions are
// never granted.
func HasPermission(level Level, perm Permission) bool {
	need, ok := minLevel[perm]
	if !ok || !level.Valid() {
		return false
	}
	return level >= need
}

// RequiredLevel returns the minimum level for perm, or 0 for an unknown one.
func RequiredLevel(perm Permission) Level {
	return minLevel[perm]
}
