package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/heitortanoue/sailbot/pkg/event"
	"github.com/heitortanoue/sailbot/pkg/vision"
)

// Config is the process configuration of the boat.
type Config struct {
	// Identification
	BoatID string `json:"boat_id"`

	// Mission loop
	MissionFile  string        `json:"mission_file"`
	TickInterval time.Duration `json:"tick_interval"`

	// Local network
	SensorPort    int           `json:"sensor_port"` // UDP port for FIX/WIND datagrams
	APIPort       int           `json:"api_port"`    // HTTP telemetry/status
	VisionAddr    string        `json:"vision_addr"` // host:port of the camera process, empty disables search
	VisionTimeout time.Duration `json:"vision_timeout"`
	VisionScale   float64       `json:"vision_scale"` // full-scale confidence of the camera process, 1 or 100
	HelmAddr      string        `json:"helm_addr"` // host:port of the helm controller, empty discards

	// Signaling
	MQTTBroker   string `json:"mqtt_broker"` // empty disables MQTT
	MQTTPort     int    `json:"mqtt_port"`
	MQTTTopic    string `json:"mqtt_topic"`
	MQTTUsername string `json:"mqtt_username"`
	MQTTPassword string `json:"-"`
	MQTTUseTLS   bool   `json:"mqtt_use_tls"`

	MeshEnabled  bool     `json:"mesh_enabled"`
	MeshBindAddr string   `json:"mesh_bind_addr"`
	MeshPort     int      `json:"mesh_port"`
	MeshSeeds    []string `json:"mesh_seeds"`

	// Event tunables
	Event event.Config `json:"-"`
}

// DefaultConfig returns the configuration used on the water.
func DefaultConfig() *Config {
	return &Config{
		BoatID:        "sailbot-1",
		MissionFile:   "mission.json",
		TickInterval:  time.Second,
		SensorPort:    7000,
		APIPort:       8080,
		VisionTimeout: 5 * time.Second,
		VisionScale:   float64(vision.PercentScale),
		MQTTPort:      1883,
		MQTTTopic:     "sailbot/signals",
		MeshBindAddr:  "0.0.0.0",
		MeshPort:      7946,
		Event:         event.DefaultConfig(),
	}
}

// Load returns DefaultConfig overridden by SAILBOT_* environment variables.
// envFile is read first when given; otherwise a ./.env is used if present.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load() // ignore missing file
	}

	cfg := DefaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("SAILBOT_ID", &c.BoatID)
	envString("SAILBOT_MISSION_FILE", &c.MissionFile)
	envString("SAILBOT_VISION_ADDR", &c.VisionAddr)
	envString("SAILBOT_HELM_ADDR", &c.HelmAddr)
	envString("SAILBOT_MQTT_BROKER", &c.MQTTBroker)
	envString("SAILBOT_MQTT_TOPIC", &c.MQTTTopic)
	envString("SAILBOT_MQTT_USERNAME", &c.MQTTUsername)
	envString("SAILBOT_MQTT_PASSWORD", &c.MQTTPassword)
	envString("SAILBOT_MESH_BIND", &c.MeshBindAddr)
	if seeds := env("SAILBOT_MESH_SEEDS"); seeds != "" {
		c.MeshSeeds = splitList(seeds)
	}

	ev := &c.Event
	for _, err := range []error{
		envDuration("SAILBOT_TICK_INTERVAL", &c.TickInterval),
		envDuration("SAILBOT_VISION_TIMEOUT", &c.VisionTimeout),
		envFloat("SAILBOT_VISION_SCALE", &c.VisionScale),
		envInt("SAILBOT_SENSOR_PORT", &c.SensorPort),
		envInt("SAILBOT_API_PORT", &c.APIPort),
		envInt("SAILBOT_MQTT_PORT", &c.MQTTPort),
		envInt("SAILBOT_MESH_PORT", &c.MeshPort),
		envBool("SAILBOT_MQTT_TLS", &c.MQTTUseTLS),
		envBool("SAILBOT_MESH", &c.MeshEnabled),

		envFloat("SAILBOT_ROUNDING_BUFFER", &ev.Endurance.RoundingBuffer),
		envInt("SAILBOT_LAPS", &ev.Endurance.Laps),
		envDuration("SAILBOT_STAY", &ev.StationKeeping.Stay),
		envFloat("SAILBOT_ESCAPE_DISTANCE", &ev.StationKeeping.EscapeDistance),
		envFloat("SAILBOT_CHUNK_RADIUS", &ev.Search.ChunkRadius),
		envInt("SAILBOT_MAX_CHUNKS", &ev.Search.MaxChunks),
		envFloat("SAILBOT_DIVERT_THRESHOLD", &ev.Search.DivertThreshold),
		envFloat("SAILBOT_RADIUS_TOLERANCE", &ev.Search.RadiusTolerance),
		envInt("SAILBOT_ABANDON_THRESHOLD", &ev.Search.AbandonThreshold),
		envFloat("SAILBOT_RAMMING_DISTANCE", &ev.Search.RammingDistance),
		envFloat("SAILBOT_COLLISION_SENSITIVITY", &ev.Search.CollisionSensitivity),
		envDuration("SAILBOT_SEARCH_DURATION", &ev.Search.Duration),
		envFloat("SAILBOT_MAX_DETECTION_DISTANCE", &ev.Search.MaxDetectionDistance),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envString(key string, dst *string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := env(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := env(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := env(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func envBool(key string, dst *bool) error {
	v := env(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadMission reads the JSON mission file, e.g.
//
//	{"event": "search", "waypoints": [{"lat": 38.98, "lon": -76.48}], "radius": 100}
func LoadMission(path string) (event.Mission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return event.Mission{}, fmt.Errorf("read mission: %w", err)
	}
	var m event.Mission
	if err := json.Unmarshal(data, &m); err != nil {
		return event.Mission{}, fmt.Errorf("parse mission %s: %w", path, err)
	}
	if len(m.Waypoints) == 0 {
		return event.Mission{}, fmt.Errorf("mission %s has no waypoints", path)
	}
	return m, nil
}
