package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heitortanoue/sailbot/internal/config"
	"github.com/heitortanoue/sailbot/pkg/api"
	"github.com/heitortanoue/sailbot/pkg/event"
	"github.com/heitortanoue/sailbot/pkg/geo"
	"github.com/heitortanoue/sailbot/pkg/logging"
	"github.com/heitortanoue/sailbot/pkg/mission"
	"github.com/heitortanoue/sailbot/pkg/network"
	"github.com/heitortanoue/sailbot/pkg/state"
	"github.com/heitortanoue/sailbot/pkg/transceiver"
	"github.com/heitortanoue/sailbot/pkg/vision"
)

func main() {
	// Command line flags override the environment
	var (
		envFile     = flag.String("env", "", "Optional .env file")
		boatID      = flag.String("id", "", "Unique ID of this boat")
		missionFile = flag.String("mission", "", "Mission JSON file")
		sensorPort  = flag.Int("sensor-port", 0, "UDP port for FIX/WIND datagrams")
		apiPort     = flag.Int("api-port", 0, "HTTP port for telemetry and status")
		visionAddr  = flag.String("vision", "", "Camera process address (host:port)")
		helmAddr    = flag.String("helm", "", "Helm controller address (host:port)")
		broker      = flag.String("mqtt", "", "MQTT broker host")
		mesh        = flag.Bool("mesh", false, "Join the boat mesh")
		showUsage   = flag.Bool("help", false, "Show usage help")
	)
	flag.Parse()

	if *showUsage {
		printUsage()
		return
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	overrideString(&cfg.BoatID, *boatID)
	overrideString(&cfg.MissionFile, *missionFile)
	overrideString(&cfg.VisionAddr, *visionAddr)
	overrideString(&cfg.HelmAddr, *helmAddr)
	overrideString(&cfg.MQTTBroker, *broker)
	if *sensorPort > 0 {
		cfg.SensorPort = *sensorPort
	}
	if *apiPort > 0 {
		cfg.APIPort = *apiPort
	}
	if *mesh {
		cfg.MeshEnabled = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, state.NewBoatState(cfg.BoatID)); err != nil {
		stop()
		log.Fatalf("Error: %v", err)
	}
}

// run wires the boat and sails the mission until it finishes or ctx is
// cancelled. Every component opened here is closed before it returns.
func run(ctx context.Context, cfg *config.Config, boat *state.BoatState) error {
	m, err := config.LoadMission(cfg.MissionFile)
	if err != nil {
		return fmt.Errorf("load mission: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := map[string]api.StatsProvider{"boat": boat}

	udpServer := network.NewUDPServer(cfg.BoatID, cfg.SensorPort, boat)
	if err := udpServer.Start(); err != nil {
		return fmt.Errorf("start UDP server: %w", err)
	}
	defer udpServer.Stop()
	stats["sensors"] = udpServer

	helm, err := network.NewHelmSender(cfg.BoatID, cfg.HelmAddr)
	if err != nil {
		return fmt.Errorf("create helm sender: %w", err)
	}
	defer helm.Close()

	var camera vision.Camera
	if cfg.VisionAddr != "" {
		client, err := network.NewVisionClient(cfg.BoatID, cfg.VisionAddr, cfg.VisionTimeout, vision.Scale(cfg.VisionScale))
		if err != nil {
			return fmt.Errorf("create vision client: %w", err)
		}
		defer client.Close()
		camera = client
		stats["vision"] = client
	}

	radio := transceiver.Multi{transceiver.LogTransceiver{}}
	if cfg.MQTTBroker != "" {
		mq := transceiver.NewMQTTTransceiver(cfg.BoatID, transceiver.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			Port:     cfg.MQTTPort,
			Topic:    cfg.MQTTTopic,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			UseTLS:   cfg.MQTTUseTLS,
			QoS:      1,
		}, logRemoteSignal)
		if err := mq.Connect(); err != nil {
			log.Printf("[MQTT] Broker unavailable, signals stay local: %v", err)
		} else {
			defer mq.Close()
			radio = append(radio, mq)
			stats["mqtt"] = mq
		}
	}
	if cfg.MeshEnabled {
		mt, err := transceiver.NewMeshTransceiver(transceiver.MeshConfig{
			NodeID:   cfg.BoatID,
			BindAddr: cfg.MeshBindAddr,
			BindPort: cfg.MeshPort,
			Seeds:    cfg.MeshSeeds,
		}, logRemoteSignal)
		if err != nil {
			log.Printf("[MESH] Mesh unavailable, signals stay local: %v", err)
		} else {
			defer mt.Close()
			radio = append(radio, mt)
			stats["mesh"] = mt
		}
	}

	server := api.NewServer(cfg.APIPort, boat, stats)
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		if err := server.Run(ctx); err != nil {
			log.Printf("[API] %v", err)
		}
	}()
	defer func() {
		cancel()
		<-serverDone
	}()

	// Startup info
	fmt.Printf("=== Boat %s ===\n", cfg.BoatID)
	fmt.Printf("Mission: %s (%d waypoints) from %s\n", m.Kind, len(m.Waypoints), cfg.MissionFile)
	fmt.Printf("Sensors (UDP): :%d\n", udpServer.Port())
	fmt.Printf("API (HTTP): http://0.0.0.0:%d\n", cfg.APIPort)
	fmt.Printf("Helm: %s\n", orNone(cfg.HelmAddr))
	fmt.Printf("Vision: %s\n", orNone(cfg.VisionAddr))
	fmt.Printf("Signals: %d transceiver(s)\n", len(radio))
	fmt.Printf("Waiting for first position fix...\n\n")

	start, err := waitForFix(ctx, boat, cfg.TickInterval)
	if err != nil {
		log.Printf("[MAIN] Stopped before first fix")
		return nil
	}

	ev, err := event.New(m, cfg.Event, event.Deps{Start: start, Camera: camera, Radio: radio})
	if err != nil {
		return fmt.Errorf("create %s event: %w", m.Kind, err)
	}

	logger := logging.NewMissionLogger(cfg.BoatID)
	logger.LogMissionStart(m.Kind, len(m.Waypoints))

	driver := mission.NewDriver(ev, boat, helm, logger, cfg.TickInterval)
	if err := driver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[MAIN] Mission stopped: %v", err)
	}

	fmt.Println("\nShutting down...")
	logger.LogStatus(ev.Status())
	log.Printf("[MAIN] Mission stats: %v", driver.GetStats())
	return nil
}

// waitForFix blocks until the boat has a position or ctx is done.
func waitForFix(ctx context.Context, boat *state.BoatState, interval time.Duration) (geo.Waypoint, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if pos, err := boat.Position(); err == nil {
			return pos, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return geo.Waypoint{}, ctx.Err()
		}
	}
}

func logRemoteSignal(sig transceiver.Signal) {
	log.Printf("[SIGNAL] From %s: %s", sig.SenderID, sig.Message)
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func orNone(addr string) string {
	if addr == "" {
		return "(none)"
	}
	return addr
}

// printUsage shows available options and endpoints
func printUsage() {
	fmt.Fprintf(os.Stderr, `
=== Sailbot Mission Runner ===

USAGE:
  %s [options]

EXAMPLES:
  %s -id=sailbot-1 -mission=endurance.json
  %s -id=sailbot-1 -mission=search.json -vision=127.0.0.1:7100 -helm=127.0.0.1:7200
  %s -id=sailbot-2 -mission=station.json -mqtt=broker.local -mesh

OPTIONS:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])

	flag.PrintDefaults()

	fmt.Fprintf(os.Stderr, `
ENVIRONMENT:
  SAILBOT_* variables (see internal/config), optionally from a .env file

ENDPOINTS (HTTP):
  GET  /health     - Liveness and uptime
  POST /position   - Update position {lat: float, lon: float}
  POST /wind       - Update wind angle {angle: float}
  GET  /status     - Current event status
  GET  /stats      - Component statistics

SENSORS (UDP):
  FIX and WIND control messages on the sensor port
`)
}
