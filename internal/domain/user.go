package domain

import (
	"encoding/json"
	"time"
)

// User is a registered account. The password hash never leaves the server.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// DefaultSaveDocument returns the starting gameplay document for a player
// with no stored save. The coordinator treats save documents as opaque;
// only these defaults and the admin tooling know any field names.
func DefaultSaveDocument() json.RawMessage {
	return json.RawMessage(`{
  "points": "0",
  "inventory": [],
  "spawnRate": 100,
  "luck": 100,
  "rebirthMultiplier": 1.0,
  "luckLevel": 0,
  "spawnLevel": 0,
  "currentZone": "Overworld"
}`)
}
