package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/Nowon11/Infinity-Cubes/internal/domain"
	"github.com/Nowon11/Infinity-Cubes/internal/storage"
	"github.com/Nowon11/Infinity-Cubes/internal/world"
)

// handleAdminVerify confirms the caller holds the admin account. The
// requireAdmin gate has already run by the time this executes.
func (r *Router) handleAdminVerify(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleAdminSetZone forces an immediate zone transition
func (r *Router) handleAdminSetZone(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Zone domain.Zone `json:"zone"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Zone == "" {
		writeError(w, http.StatusBadRequest, "zone required")
		return
	}

	if err := r.coord.SetZone(body.Zone); err != nil {
		if errors.Is(err, world.ErrUnknownZone) {
			writeError(w, http.StatusBadRequest, "unknown zone")
			return
		}
		writeError(w, http.StatusInternalServerError, "zone change failed")
		return
	}

	log.Printf("Admin changed zone to: %s", body.Zone)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Zone set to %s", body.Zone),
	})
}

// handleAdminResetZoneTimer winds the countdown back to full
func (r *Router) handleAdminResetZoneTimer(w http.ResponseWriter, req *http.Request) {
	r.coord.ResetZoneTimer()
	log.Printf("Admin reset zone timer")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Zone timer reset",
	})
}

// handleAdminClearChat empties chat history and cube alerts
func (r *Router) handleAdminClearChat(w http.ResponseWriter, req *http.Request) {
	r.coord.ClearChat()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Chat and alerts cleared",
	})
}

// handleAdminSendMessage broadcasts a chat message from the admin account
func (r *Router) handleAdminSendMessage(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Message == "" {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}

	r.coord.Chat(r.adminUsername, body.Message)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Admin message sent",
	})
}

// handleAdminSpawnGlobalCube spawns a cube with admin tooling
func (r *Router) handleAdminSpawnGlobalCube(w http.ResponseWriter, req *http.Request) {
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
		"message": fmt.Sprintf("Spawned global %s cube", body.Rarity),
		"cube":    cube,
	})
}

// handleAdminStartDiamondStorm activates a diamond storm
func (r *Router) handleAdminStartDiamondStorm(w http.ResponseWriter, req *http.Request) {
	r.coord.StartDiamondStorm()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Diamond storm started",
	})
}

// handleAdminDeleteAccount removes another player's account
func (r *Router) handleAdminDeleteAccount(w http.ResponseWriter, req *http.Request) {
	var body struct {
		TargetUser string `json:"targetUser"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.TargetUser == "" {
		writeError(w, http.StatusBadRequest, "target username required")
		return
	}
	if body.TargetUser == r.adminUsername {
		writeError(w, http.StatusForbidden, "the admin account cannot be deleted")
		return
	}

	if err := r.store.DeleteUser(req.Context(), body.TargetUser); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "account deletion failed")
		return
	}

	log.Printf("Admin deleted account %s", body.TargetUser)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Successfully deleted account: %s", body.TargetUser),
	})
}

// targetRequest is the shared body shape for admin save-document tooling.
// An empty targetPlayer means the admin's own save.
type targetRequest struct {
	TargetPlayer string  `json:"targetPlayer"`
	Amount       float64 `json:"amount"`
	SpawnRate    float64 `json:"spawnRate"`
}

func (r *Router) adminTarget(body targetRequest) string {
	if body.TargetPlayer != "" {
		return body.TargetPlayer
	}
	return r.adminUsername
}

// updateSaveDocument loads a player's save, applies fn, and stores it back.
// The save is opaque to the coordinator; only this admin tooling reaches
// into known fields.
func (r *Router) updateSaveDocument(ctx context.Context, username string, fn func(doc map[string]interface{})) error {
	raw, err := r.store.LoadDocument(ctx, username)
	if err != nil {
		return err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decoding save document: %w", err)
	}

	fn(doc)

	updated, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding save document: %w", err)
	}
	return r.store.SaveDocument(ctx, username, updated)
}

func (r *Router) writeSaveUpdateError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNoDocument) {
		writeError(w, http.StatusNotFound, "player data not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to update player data")
}

// handleAdminGiveDiamonds adds diamonds to a player's save
func (r *Router) handleAdminGiveDiamonds(w http.ResponseWriter, req *http.Request) {
	var body targetRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := r.adminTarget(body)
	err := r.updateSaveDocument(req.Context(), target, func(doc map[string]interface{}) {
		current, _ := doc["diamonds"].(float64)
		doc["diamonds"] = current + body.Amount
	})
	if err != nil {
		r.writeSaveUpdateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Gave %g diamonds", body.Amount),
	})
}

// handleAdminGivePoints adds points to a player's save. Points are stored
// as a decimal string in the document.
func (r *Router) handleAdminGivePoints(w http.ResponseWriter, req *http.Request) {
	var body targetRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := r.adminTarget(body)
	err := r.updateSaveDocument(req.Context(), target, func(doc map[string]interface{}) {
		current := 0.0
		if s, ok := doc["points"].(string); ok {
			current, _ = strconv.ParseFloat(s, 64)
		}
		doc["points"] = strconv.FormatFloat(current+body.Amount, 'f', -1, 64)
	})
	if err != nil {
		r.writeSaveUpdateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Gave %g points to %s", body.Amount, target),
	})
}

// handleAdminSetPoints overwrites a player's points balance
func (r *Router) handleAdminSetPoints(w http.ResponseWriter, req *http.Request) {
	var body targetRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := r.adminTarget(body)
	err := r.updateSaveDocument(req.Context(), target, func(doc map[string]interface{}) {
		doc["points"] = strconv.FormatFloat(body.Amount, 'f', -1, 64)
	})
	if err != nil {
		r.writeSaveUpdateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Set %s's points to %g", target, body.Amount),
	})
}

// handleAdminClearInventory empties a player's inventory
func (r *Router) handleAdminClearInventory(w http.ResponseWriter, req *http.Request) {
	var body targetRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := r.adminTarget(body)
	err := r.updateSaveDocument(req.Context(), target, func(doc map[string]interface{}) {
		doc["inventory"] = []interface{}{}
	})
	if err != nil {
		r.writeSaveUpdateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Inventory cleared",
	})
}

// handleAdminMaxUpgrades sets a player's upgrade levels to the cap
func (r *Router) handleAdminMaxUpgrades(w http.ResponseWriter, req *http.Request) {
	var body targetRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := r.adminTarget(body)
	err := r.updateSaveDocument(req.Context(), target, func(doc map[string]interface{}) {
		doc["luckLevel"] = maxUpgradeLevel
		doc["spawnLevel"] = maxUpgradeLevel
	})
	if err != nil {
		r.writeSaveUpdateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Upgrades maxed",
	})
}

// handleAdminSetSpawnRate overwrites a player's spawn rate
func (r *Router) handleAdminSetSpawnRate(w http.ResponseWriter, req *http.Request) {
	var body targetRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := r.adminTarget(body)
	err := r.updateSaveDocument(req.Context(), target, func(doc map[string]interface{}) {
		doc["spawnRate"] = body.SpawnRate
	})
	if err != nil {
		r.writeSaveUpdateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Spawn rate set to %g%%", body.SpawnRate),
	})
}

// handleAdminResetPlayer replaces a player's save with the defaults
func (r *Router) handleAdminResetPlayer(w http.ResponseWriter, req *http.Request) {
	var body targetRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.TargetPlayer == "" {
		writeError(w, http.StatusBadRequest, "targetPlayer required")
		return
	}

	if _, err := r.store.GetUserByUsername(req.Context(), body.TargetPlayer); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := r.store.SaveDocument(req.Context(), body.TargetPlayer, domain.DefaultSaveDocument()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset player")
		return
	}

	log.Printf("Admin reset player %s", body.TargetPlayer)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Player %s reset", body.TargetPlayer),
	})
}
