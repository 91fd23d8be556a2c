package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Nowon11/Infinity-Cubes/internal/domain"
	"github.com/Nowon11/Infinity-Cubes/internal/storage"
	"github.com/Nowon11/Infinity-Cubes/internal/world"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth returns process status plus the current world state
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	zone, timer := r.coord.ZoneInfo()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"timestamp":    time.Now().UTC(),
		"zone":         zone,
		"zoneTimer":    timer,
		"diamondStorm": r.coord.DiamondStormActive(),
		"clients":      r.hub.ClientCount(),
	})
}

// handleGetZone returns the current zone and countdown
func (r *Router) handleGetZone(w http.ResponseWriter, req *http.Request) {
	zone, timer := r.coord.ZoneInfo()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"zone":  zone,
		"timer": timer,
	})
}

// SaveRequest is the request body for storing a gameplay document
type SaveRequest struct {
	Username string          `json:"username"`
	GameData json.RawMessage `json:"gameData"`
}

// handleSave stores a gameplay document verbatim. The document is opaque
// at this layer; no schema validation beyond being well-formed JSON.
func (r *Router) handleSave(w http.ResponseWriter, req *http.Request) {
	var body SaveRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.Username == "" || len(body.GameData) == 0 {
		writeError(w, http.StatusBadRequest, "invalid data")
		return
	}

	if err := r.store.SaveDocument(req.Context(), body.Username, body.GameData); err != nil {
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleLoad returns the stored gameplay document, or the defaults for a
// player with no save
func (r *Router) handleLoad(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Username == "" {
		writeError(w, http.StatusBadRequest, "username required")
		return
	}

	doc, err := r.store.LoadDocument(req.Context(), body.Username)
	if errors.Is(err, storage.ErrNoDocument) {
		doc = domain.DefaultSaveDocument()
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "load failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    doc,
	})
}

// handleChatHistory returns the most recent chat messages
func (r *Router) handleChatHistory(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": r.coord.ChatHistory(historyResponseLimit),
	})
}

// handleCubeAlerts returns the most recent rare cube alerts
func (r *Router) handleCubeAlerts(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"alerts":  r.coord.CubeAlerts(historyResponseLimit),
	})
}

// handleClearChat empties the chat and alert histories
func (r *Router) handleClearChat(w http.ResponseWriter, req *http.Request) {
	r.coord.ClearChat()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Chat history and cube alerts cleared",
	})
}

// handleGlobalCubes returns the live global cube list
func (r *Router) handleGlobalCubes(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cubes":   r.coord.GlobalCubes(),
	})
}

// SpawnCubeRequest is the request body for spawning a global cube
type SpawnCubeRequest struct {
	Rarity string  `json:"rarity"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Odds   float64 `json:"odds"`
}

// handleSpawnGlobalCube creates a global cube visible to every client
func (r *Router) handleSpawnGlobalCube(w http.ResponseWriter, req *http.Request) {
	var body SpawnCubeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Rarity == "" {
		writeError(w, http.StatusBadRequest, "rarity required")
		return
	}

	cube := r.coord.SpawnGlobalCube(body.Rarity, body.X, body.Y, body.Odds)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cube":    cube,
	})
}

// CollectCubeRequest is the request body for claiming a global cube
type CollectCubeRequest struct {
	CubeID   int64  `json:"cubeId"`
	Username string `json:"username"`
}

// handleCollectGlobalCube claims a cube. A cube already claimed by someone
// else (or expired off the cap) yields a 404 and no broadcast.
func (r *Router) handleCollectGlobalCube(w http.ResponseWriter, req *http.Request) {
	var body CollectCubeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.CubeID == 0 {
		writeError(w, http.StatusBadRequest, "cubeId required")
		return
	}

	cube, err := r.coord.CollectGlobalCube(body.CubeID, body.Username)
	if errors.Is(err, world.ErrCubeNotFound) {
		writeError(w, http.StatusNotFound, "Cube not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cube":    cube,
	})
}
