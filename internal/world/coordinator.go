package world

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/Nowon11/Infinity-Cubes/internal/domain"
	"github.com/Nowon11/Infinity-Cubes/internal/snapshot"
)

// EventsSubject is the bus subject world events are published on.
const EventsSubject = "world.events"

// Snapshot document names, one per concern
const (
	snapZoneState   = "zoneState"
	snapChatHistory = "chatHistory"
	snapCubeAlerts  = "cubeAlerts"
	snapGlobalCubes = "globalCubes"
)

const (
	chatHistoryLimit = 100
	cubeAlertLimit   = 100
	globalCubeLimit  = 50

	stormMinDuration = 30 * time.Second
	stormExtraRange  = 30 // additional seconds, [0, 30)
)

var (
	ErrUnknownZone  = errors.New("unknown zone")
	ErrCubeNotFound = errors.New("cube not found")
)

// Publisher delivers serialized world events to the fan-out layer.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Snapshots persists world documents between restarts.
type Snapshots interface {
	Save(name string, v interface{}) error
	Load(name string, v interface{}) error
}

// Config holds the coordinator's game settings.
type Config struct {
	Zones        []domain.Zone
	ZoneDuration int // seconds between forced rotations
}

// Coordinator owns the authoritative shared world state: current zone and
// countdown, diamond storm flag, global cube list, and the chat and alert
// histories. All state is mutated by a single goroutine draining a command
// channel, so a handler runs to completion (mutation, persistence, publish)
// before the next one starts. Cross-client races, such as two claims for
// the same cube, are resolved by arrival order.
type Coordinator struct {
	zones        []domain.Zone
	zoneDuration int

	snapshots Snapshots
	bus       Publisher
	rng       *rand.Rand

	// owned by the run loop
	zone           domain.Zone
	zoneTimer      int
	lastZoneChange time.Time
	stormActive    bool
	stormEndsAt    time.Time
	chat           *boundedLog[domain.ChatMessage]
	alerts         *boundedLog[domain.CubeAlert]
	cubes          []domain.GlobalCube
	nextCubeID     int64

	commands chan func()
}

// New creates a coordinator with default state. Call LoadSnapshot before
// Run to recover persisted state.
func New(cfg Config, snapshots Snapshots, bus Publisher) *Coordinator {
	zones := cfg.Zones
	if len(zones) == 0 {
		zones = domain.DefaultZones()
	}
	duration := cfg.ZoneDuration
	if duration <= 0 {
		duration = 300
	}

	return &Coordinator{
		zones:          zones,
		zoneDuration:   duration,
		snapshots:      snapshots,
		bus:            bus,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		zone:           zones[0],
		zoneTimer:      duration,
		lastZoneChange: time.Now(),
		chat:           newBoundedLog[domain.ChatMessage](chatHistoryLimit),
		alerts:         newBoundedLog[domain.CubeAlert](cubeAlertLimit),
		nextCubeID:     1,
		commands:       make(chan func(), 64),
	}
}

// LoadSnapshot restores persisted world state. The zone countdown is
// recomputed from the last change time rather than resumed from a stored
// counter, so it stays correct across restarts. Storm state is ephemeral
// and always starts inactive. An unreadable document falls back to its
// default rather than blocking startup. Must be called before Run.
func (c *Coordinator) LoadSnapshot(now time.Time) {
	var zs domain.ZoneState
	switch err := c.snapshots.Load(snapZoneState, &zs); {
	case err == nil:
		if c.validZone(zs.Zone) {
			c.zone = zs.Zone
		}
		c.lastZoneChange = zs.LastZoneChangeTime
		elapsed := int(now.Sub(zs.LastZoneChangeTime).Seconds())
		c.zoneTimer = max(0, c.zoneDuration-elapsed)
		log.Printf("Loaded zone state: %s, timer: %ds", c.zone, c.zoneTimer)
	case errors.Is(err, snapshot.ErrNotExist):
		c.lastZoneChange = now
	default:
		log.Printf("Error loading zone state, starting fresh: %v", err)
		c.lastZoneChange = now
	}

	var chat []domain.ChatMessage
	if err := c.snapshots.Load(snapChatHistory, &chat); err == nil {
		c.chat.Seed(chat)
	} else if !errors.Is(err, snapshot.ErrNotExist) {
		log.Printf("Error loading chat history, starting fresh: %v", err)
	}

	var alerts []domain.CubeAlert
	if err := c.snapshots.Load(snapCubeAlerts, &alerts); err == nil {
		c.alerts.Seed(alerts)
	} else if !errors.Is(err, snapshot.ErrNotExist) {
		log.Printf("Error loading cube alerts, starting fresh: %v", err)
	}

	var cs domain.GlobalCubeState
	if err := c.snapshots.Load(snapGlobalCubes, &cs); err == nil {
		c.cubes = cs.Cubes
		if cs.NextID > 0 {
			c.nextCubeID = cs.NextID
		}
	} else if !errors.Is(err, snapshot.ErrNotExist) {
		log.Printf("Error loading global cubes, starting fresh: %v", err)
	}
}

// Run drains the command channel and drives the once-per-second tick until
// the context is canceled. All world state is touched only from this loop.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(time.Now())
		case cmd := <-c.commands:
			cmd()
		}
	}
}

// do runs fn on the coordinator loop and waits for it to finish, giving
// callers synchronous request/response semantics.
func (c *Coordinator) do(fn func()) {
	done := make(chan struct{})
	c.commands <- func() {
		fn()
		close(done)
	}
	<-done
}

// --- Public API (callable from any goroutine) ---

// Chat stamps, records, persists, and broadcasts a chat message.
func (c *Coordinator) Chat(username, message string) domain.ChatMessage {
	var msg domain.ChatMessage
	c.do(func() { msg = c.appendChat(username, message, time.Now()) })
	return msg
}

// RareCube records and broadcasts a client-reported rare drop. The rarity
// and odds are cosmetic only; no currency is granted through this path.
func (c *Coordinator) RareCube(username, rarity string, odds float64) domain.CubeAlert {
	var alert domain.CubeAlert
	c.do(func() { alert = c.appendAlert(username, rarity, odds, time.Now()) })
	return alert
}

// SpawnGlobalCube assigns the next cube id, records the cube, and
// broadcasts the spawn plus a SYSTEM alert.
func (c *Coordinator) SpawnGlobalCube(rarity string, x, y, odds float64) domain.GlobalCube {
	var cube domain.GlobalCube
	c.do(func() { cube = c.spawnCube(rarity, x, y, odds, time.Now()) })
	return cube
}

// CollectGlobalCube claims a cube by id. The first claim to arrive wins;
// later claims get ErrCubeNotFound and trigger no broadcast.
func (c *Coordinator) CollectGlobalCube(id int64, username string) (domain.GlobalCube, error) {
	var cube domain.GlobalCube
	var err error
	c.do(func() { cube, err = c.collectCube(id, username) })
	return cube, err
}

// ZoneInfo returns the current zone and countdown.
func (c *Coordinator) ZoneInfo() (domain.Zone, int) {
	var zone domain.Zone
	var timer int
	c.do(func() { zone, timer = c.zone, c.zoneTimer })
	return zone, timer
}

// SetZone forces an immediate transition to the given zone, resetting the
// countdown, with the same persistence and broadcast as a timed rotation.
func (c *Coordinator) SetZone(zone domain.Zone) error {
	var err error
	c.do(func() {
		if !c.validZone(zone) {
			err = ErrUnknownZone
			return
		}
		c.applyZone(zone, time.Now())
	})
	return err
}

// ResetZoneTimer winds the countdown back to full without changing zones.
func (c *Coordinator) ResetZoneTimer() {
	c.do(func() {
		c.zoneTimer = c.zoneDuration
		c.publish(domain.ZoneTimerUpdateEvent{Type: domain.MsgZoneTimerUpdate, Timer: c.zoneTimer})
	})
}

// StartDiamondStorm activates the storm if not already active. Returns
// whether this call started it; a redundant start is a no-op and does not
// reschedule the end.
func (c *Coordinator) StartDiamondStorm() bool {
	var started bool
	c.do(func() { started = c.startStorm(time.Now()) })
	return started
}

// DiamondStormActive reports whether a storm is in progress.
func (c *Coordinator) DiamondStormActive() bool {
	var active bool
	c.do(func() { active = c.stormActive })
	return active
}

// ClearChat empties both the chat and alert histories.
func (c *Coordinator) ClearChat() {
	c.do(func() {
		c.chat.Clear()
		c.alerts.Clear()
		c.persistChat()
		c.persistAlerts()
	})
}

// ChatHistory returns the most recent n chat messages, oldest first.
func (c *Coordinator) ChatHistory(n int) []domain.ChatMessage {
	var msgs []domain.ChatMessage
	c.do(func() { msgs = c.chat.Tail(n) })
	return msgs
}

// CubeAlerts returns the most recent n alerts, oldest first.
func (c *Coordinator) CubeAlerts(n int) []domain.CubeAlert {
	var alerts []domain.CubeAlert
	c.do(func() { alerts = c.alerts.Tail(n) })
	return alerts
}

// GlobalCubes returns the live global cube list.
func (c *Coordinator) GlobalCubes() []domain.GlobalCube {
	var cubes []domain.GlobalCube
	c.do(func() { cubes = append([]domain.GlobalCube(nil), c.cubes...) })
	return cubes
}

// --- Loop-thread internals ---

// tick advances the countdown by one second, expires a finished storm, and
// rotates the zone when the countdown reaches zero.
func (c *Coordinator) tick(now time.Time) {
	if c.stormActive && !now.Before(c.stormEndsAt) {
		c.stormActive = false
		c.publish(domain.DiamondStormEvent{Type: domain.MsgDiamondStorm, Status: domain.StormEnd})
	}

	if c.zoneTimer > 0 {
		c.zoneTimer--
	}
	c.publish(domain.ZoneTimerUpdateEvent{Type: domain.MsgZoneTimerUpdate, Timer: c.zoneTimer})

	if c.zoneTimer <= 0 {
		c.applyZone(c.randomOtherZone(), now)
	}
}

// randomOtherZone samples uniformly from the zone set excluding the current
// zone. A single-zone set may repeat.
func (c *Coordinator) randomOtherZone() domain.Zone {
	if len(c.zones) <= 1 {
		return c.zones[0]
	}
	candidates := make([]domain.Zone, 0, len(c.zones)-1)
	for _, z := range c.zones {
		if z != c.zone {
			candidates = append(candidates, z)
		}
	}
	return candidates[c.rng.Intn(len(candidates))]
}

// applyZone performs the shared transition contract: set zone, reset
// countdown, stamp the change time, persist, broadcast.
func (c *Coordinator) applyZone(zone domain.Zone, now time.Time) {
	c.zone = zone
	c.zoneTimer = c.zoneDuration
	c.lastZoneChange = now
	c.persistZone(now)
	c.publish(domain.ZoneChangeEvent{Type: domain.MsgZoneChange, Zone: c.zone, Timer: c.zoneTimer})
	log.Printf("Zone changed to: %s", c.zone)
}

func (c *Coordinator) validZone(zone domain.Zone) bool {
	for _, z := range c.zones {
		if z == zone {
			return true
		}
	}
	return false
}

func (c *Coordinator) startStorm(now time.Time) bool {
	if c.stormActive {
		return false
	}
	c.stormActive = true
	c.stormEndsAt = now.Add(stormMinDuration + time.Duration(c.rng.Intn(stormExtraRange))*time.Second)
	c.publish(domain.DiamondStormEvent{Type: domain.MsgDiamondStorm, Status: domain.StormStart})
	return true
}

func (c *Coordinator) appendChat(username, message string, now time.Time) domain.ChatMessage {
	msg := domain.ChatMessage{Username: username, Message: message, Timestamp: now}
	c.chat.Append(msg)
	c.persistChat()
	c.publish(domain.ChatEvent{Type: domain.MsgChat, Username: msg.Username, Message: msg.Message, Timestamp: msg.Timestamp})
	return msg
}

func (c *Coordinator) appendAlert(username, rarity string, odds float64, now time.Time) domain.CubeAlert {
	alert := domain.CubeAlert{Username: username, Rarity: rarity, Odds: odds, Timestamp: now}
	c.alerts.Append(alert)
	c.persistAlerts()
	c.publish(domain.RareCubeEvent{Type: domain.MsgRareCube, Username: alert.Username, Rarity: alert.Rarity, Odds: alert.Odds, Timestamp: alert.Timestamp})
	return alert
}

func (c *Coordinator) spawnCube(rarity string, x, y, odds float64, now time.Time) domain.GlobalCube {
	cube := domain.GlobalCube{
		ID:        c.nextCubeID,
		Rarity:    rarity,
		X:         x,
		Y:         y,
		Timestamp: now,
	}
	c.nextCubeID++
	c.cubes = append(c.cubes, cube)
	if len(c.cubes) > globalCubeLimit {
		c.cubes = c.cubes[len(c.cubes)-globalCubeLimit:]
	}
	c.persistCubes()
	c.publish(domain.GlobalCubeSpawnEvent{Type: domain.MsgGlobalCubeSpawn, Cube: cube})

	// Spawns also show up in the alert feed, attributed to SYSTEM.
	if odds <= 0 {
		odds = 1
	}
	c.appendAlert("SYSTEM", rarity, odds, now)

	return cube
}

func (c *Coordinator) collectCube(id int64, username string) (domain.GlobalCube, error) {
	for i, cube := range c.cubes {
		if cube.ID == id {
			c.cubes = append(c.cubes[:i], c.cubes[i+1:]...)
			c.persistCubes()
			c.publish(domain.GlobalCubeCollectedEvent{Type: domain.MsgGlobalCubeCollected, CubeID: id, Username: username})
			return cube, nil
		}
	}
	return domain.GlobalCube{}, ErrCubeNotFound
}

// --- Persistence (best effort: failures are logged, never rolled back) ---

func (c *Coordinator) persistZone(now time.Time) {
	state := domain.ZoneState{Zone: c.zone, LastZoneChangeTime: c.lastZoneChange, Timestamp: now}
	if err := c.snapshots.Save(snapZoneState, state); err != nil {
		log.Printf("Error saving zone state: %v", err)
	}
}

func (c *Coordinator) persistChat() {
	if err := c.snapshots.Save(snapChatHistory, c.chat.Items()); err != nil {
		log.Printf("Error saving chat history: %v", err)
	}
}

func (c *Coordinator) persistAlerts() {
	if err := c.snapshots.Save(snapCubeAlerts, c.alerts.Items()); err != nil {
		log.Printf("Error saving cube alerts: %v", err)
	}
}

func (c *Coordinator) persistCubes() {
	if err := c.snapshots.Save(snapGlobalCubes, domain.GlobalCubeState{NextID: c.nextCubeID, Cubes: c.cubes}); err != nil {
		log.Printf("Error saving global cubes: %v", err)
	}
}

func (c *Coordinator) publish(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error marshaling world event: %v", err)
		return
	}
	if err := c.bus.Publish(EventsSubject, data); err != nil {
		log.Printf("Error publishing world event: %v", err)
	}
}
