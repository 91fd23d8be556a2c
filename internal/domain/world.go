package domain

import "time"

// Zone is a named world region. The active zone determines which cube
// rarities can spawn on clients and rotates on a fixed timer.
type Zone string

const (
	ZoneOverworld Zone = "Overworld"
	ZoneCave      Zone = "Cave"
	ZoneVolcano   Zone = "Volcano"
	ZoneSpace     Zone = "Space"
)

// DefaultZones returns the built-in zone rotation set.
func DefaultZones() []Zone {
	return []Zone{ZoneOverworld, ZoneCave, ZoneVolcano, ZoneSpace}
}

// ZoneState is the persisted zone snapshot. The remaining timer is not
// stored; it is recomputed from LastZoneChangeTime on startup so the
// countdown stays correct across restarts.
type ZoneState struct {
	Zone               Zone      `json:"zone"`
	LastZoneChangeTime time.Time `json:"lastZoneChangeTime"`
	Timestamp          time.Time `json:"timestamp"`
}

// ChatMessage is one entry in the bounded chat history.
type ChatMessage struct {
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CubeAlert records a client-reported rare drop. Rarity and odds are
// display-only values; nothing economic is derived from them.
type CubeAlert struct {
	Username  string    `json:"username"`
	Rarity    string    `json:"rarity"`
	Odds      float64   `json:"odds"`
	Timestamp time.Time `json:"timestamp"`
}

// GlobalCube is a server-brokered collectible visible to every connected
// client. IDs come from a monotonic counter and are never reused.
type GlobalCube struct {
	ID        int64     `json:"id"`
	Rarity    string    `json:"rarity"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

// GlobalCubeState is the persisted global cube snapshot, carrying the id
// counter alongside the live list.
type GlobalCubeState struct {
	NextID int64        `json:"nextId"`
	Cubes  []GlobalCube `json:"cubes"`
}
