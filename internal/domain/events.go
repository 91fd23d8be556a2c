package domain

import "time"

// Message types on the realtime channel
const (
	// server -> client
	MsgChat                = "chat"
	MsgRareCube            = "rareCube"
	MsgZoneChange          = "zoneChange"
	MsgZoneTimerUpdate     = "zoneTimerUpdate"
	MsgZoneInfo            = "zoneInfo"
	MsgGlobalCubeSpawn     = "globalCubeSpawn"
	MsgGlobalCubeCollected = "globalCubeCollected"
	MsgDiamondStorm        = "diamondStorm"

	// client -> server (MsgChat and MsgRareCube travel both ways)
	MsgGetZoneInfo         = "getZoneInfo"
	MsgRequestDiamondStorm = "requestDiamondStorm"
	MsgAdminSetZone        = "adminSetZone"
	MsgAdminResetZoneTimer = "adminResetZoneTimer"
)

// Diamond storm statuses
const (
	StormStart = "start"
	StormEnd   = "end"
)

// ChatEvent relays a chat message to every connection, sender included.
// The timestamp is server-assigned.
type ChatEvent struct {
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RareCubeEvent relays a client-reported rare drop. Values are echoed
// verbatim; the server does not verify them.
type RareCubeEvent struct {
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	Rarity    string    `json:"rarity"`
	Odds      float64   `json:"odds"`
	Timestamp time.Time `json:"timestamp"`
}

// ZoneChangeEvent announces a zone transition with the fresh countdown.
type ZoneChangeEvent struct {
	Type  string `json:"type"`
	Zone  Zone   `json:"zone"`
	Timer int    `json:"timer"`
}

// ZoneTimerUpdateEvent carries the per-second countdown tick.
type ZoneTimerUpdateEvent struct {
	Type  string `json:"type"`
	Timer int    `json:"timer"`
}

// ZoneInfoEvent answers a getZoneInfo request; sent to the requester only.
type ZoneInfoEvent struct {
	Type  string `json:"type"`
	Zone  Zone   `json:"zone"`
	Timer int    `json:"timer"`
}

// GlobalCubeSpawnEvent announces a new global cube.
type GlobalCubeSpawnEvent struct {
	Type string     `json:"type"`
	Cube GlobalCube `json:"cube"`
}

// GlobalCubeCollectedEvent announces that a global cube was claimed.
type GlobalCubeCollectedEvent struct {
	Type     string `json:"type"`
	CubeID   int64  `json:"cubeId"`
	Username string `json:"username"`
}

// DiamondStormEvent signals storm start or end.
type DiamondStormEvent struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// ClientMessage is the inbound envelope read off a websocket connection.
// Fields beyond Type are populated per message type.
type ClientMessage struct {
	Type     string  `json:"type"`
	Username string  `json:"username,omitempty"`
	Message  string  `json:"message,omitempty"`
	Rarity   string  `json:"rarity,omitempty"`
	Odds     float64 `json:"odds,omitempty"`
	Zone     Zone    `json:"zone,omitempty"`
}
