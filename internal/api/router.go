package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Nowon11/Infinity-Cubes/internal/auth"
	"github.com/Nowon11/Infinity-Cubes/internal/storage"
	"github.com/Nowon11/Infinity-Cubes/internal/world"
)

// Bus is the subscription side of the message bus the coordinator
// publishes world events on.
type Bus interface {
	Subscribe(subject string, handler func(data []byte)) (func(), error)
}

// Router holds the HTTP routes and dependencies
type Router struct {
	mux           *http.ServeMux
	store         *storage.Store
	coord         *world.Coordinator
	hub           *Hub
	auth          *auth.Service
	adminUsername string
	staticDir     string
}

// NewRouter creates a new HTTP router
func NewRouter(store *storage.Store, coord *world.Coordinator, authService *auth.Service, adminUsername, staticDir string) *Router {
	r := &Router{
		mux:           http.NewServeMux(),
		store:         store,
		coord:         coord,
		hub:           NewHub(coord, adminUsername),
		auth:          authService,
		adminUsername: adminUsername,
		staticDir:     staticDir,
	}

	// World state
	r.mux.HandleFunc("GET /zone", r.handleGetZone)
	r.mux.HandleFunc("POST /zone", r.requireAdmin(r.handleAdminSetZone))

	// Accounts
	r.mux.HandleFunc("POST /register", r.handleRegister)
	r.mux.HandleFunc("POST /login", r.handleLogin)
	r.mux.HandleFunc("POST /change-password", r.handleChangePassword)
	r.mux.HandleFunc("POST /delete-account", r.handleDeleteAccount)
	r.mux.HandleFunc("POST /account-info", r.handleAccountInfo)

	// Save documents
	r.mux.HandleFunc("POST /save", r.handleSave)
	r.mux.HandleFunc("POST /load", r.handleLoad)

	// Chat and alerts
	r.mux.HandleFunc("GET /chat-history", r.handleChatHistory)
	r.mux.HandleFunc("GET /cube-alerts", r.handleCubeAlerts)
	r.mux.HandleFunc("POST /clear-chat", r.handleClearChat)

	// Global cubes
	r.mux.HandleFunc("GET /global-cubes", r.handleGlobalCubes)
	r.mux.HandleFunc("POST /spawn-global-cube", r.handleSpawnGlobalCube)
	r.mux.HandleFunc("POST /collect-global-cube", r.handleCollectGlobalCube)

	// Admin surface (single authorization gate, applied at the route)
	r.mux.HandleFunc("POST /admin/verify", r.requireAdmin(r.handleAdminVerify))
	r.mux.HandleFunc("POST /admin/set-zone", r.requireAdmin(r.handleAdminSetZone))
	r.mux.HandleFunc("POST /admin/reset-zone-timer", r.requireAdmin(r.handleAdminResetZoneTimer))
	r.mux.HandleFunc("POST /admin/clear-chat", r.requireAdmin(r.handleAdminClearChat))
	r.mux.HandleFunc("POST /admin/send-message", r.requireAdmin(r.handleAdminSendMessage))
	r.mux.HandleFunc("POST /admin/spawn-global-cube", r.requireAdmin(r.handleAdminSpawnGlobalCube))
	r.mux.HandleFunc("POST /admin/start-diamond-storm", r.requireAdmin(r.handleAdminStartDiamondStorm))
	r.mux.HandleFunc("POST /admin/delete-account", r.requireAdmin(r.handleAdminDeleteAccount))
	r.mux.HandleFunc("POST /admin/give-diamonds", r.requireAdmin(r.handleAdminGiveDiamonds))
	r.mux.HandleFunc("POST /admin/give-points", r.requireAdmin(r.handleAdminGivePoints))
	r.mux.HandleFunc("POST /admin/set-points", r.requireAdmin(r.handleAdminSetPoints))
	r.mux.HandleFunc("POST /admin/clear-inventory", r.requireAdmin(r.handleAdminClearInventory))
	r.mux.HandleFunc("POST /admin/max-upgrades", r.requireAdmin(r.handleAdminMaxUpgrades))
	r.mux.HandleFunc("POST /admin/set-spawn-rate", r.requireAdmin(r.handleAdminSetSpawnRate))
	r.mux.HandleFunc("POST /admin/reset-player", r.requireAdmin(r.handleAdminResetPlayer))

	// WebSocket endpoint
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)

	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)

	// Static files - only serve if staticDir is configured
	if staticDir != "" {
		r.mux.HandleFunc("GET /", r.handleStatic)
	}

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// CORS headers for API
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// StartHub starts the WebSocket hub and bridges world events into it.
func (r *Router) StartHub(bus Bus) error {
	go r.hub.Run()

	_, err := bus.Subscribe(world.EventsSubject, func(data []byte) {
		r.hub.Broadcast(data)
	})
	if err != nil {
		return err
	}
	return nil
}

// handleStatic serves the game client from the configured directory.
// Serves index.html for any path that doesn't match a file.
func (r *Router) handleStatic(w http.ResponseWriter, req *http.Request) {
	path := filepath.Clean(req.URL.Path)
	if path == "/" {
		path = "/index.html"
	}

	fullPath := filepath.Join(r.staticDir, path)

	// Security: ensure the path is within staticDir
	absStaticDir, _ := filepath.Abs(r.staticDir)
	absPath, _ := filepath.Abs(fullPath)
	if !strings.HasPrefix(absPath, absStaticDir) {
		http.NotFound(w, req)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		fullPath = filepath.Join(r.staticDir, "index.html")
		if _, err := os.Stat(fullPath); err != nil {
			http.NotFound(w, req)
			return
		}
	}

	http.ServeFile(w, req, fullPath)
}
