package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/rover.bridge/internal/bridge"
	"github.com/banshee-data/rover.bridge/internal/journal"
	"github.com/banshee-data/rover.bridge/internal/monitoring"
	"github.com/banshee-data/rover.bridge/internal/transport"
	"github.com/banshee-data/rover.bridge/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to a JSON bridge configuration (defaults are used when empty)")
	destIP      = flag.String("dest", "", "Destination IP for telemetry (overrides config)")
	bindIP      = flag.String("bind", "", "Bind IP for the motion command socket (overrides config)")
	debugListen = flag.String("debug-listen", "", "Serve /debug/ on this address, e.g. localhost:8180 (overrides config)")
	journalPath = flag.String("journal", "", "Path to the sqlite run journal (overrides config)")
	encoderMode = flag.String("encoder-mode", "", "Encoder telemetry producer: real or synthetic (overrides config)")
	actuator    = flag.String("actuator", "", "Actuator kind: serial or disabled (overrides config)")
	noLidar     = flag.Bool("no-lidar", false, "Disable the range-scan stream")
	noIMU       = flag.Bool("no-imu", false, "Disable the inertial stream")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	log.Printf("starting %s", version.String())

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyOverrides(cfg, overrides{
		DestIP:      *destIP,
		BindIP:      *bindIP,
		DebugListen: *debugListen,
		JournalPath: *journalPath,
		EncoderMode: *encoderMode,
		Actuator:    *actuator,
		NoLidar:     *noLidar,
		NoIMU:       *noIMU,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats := monitoring.NewRegistry()

	commands, err := transport.Listen(cfg.MotionAddr())
	if err != nil {
		log.Fatalf("failed to open motion socket: %v", err)
	}

	var jrnl *journal.Journal
	if cfg.JournalPath != "" {
		jrnl, err = journal.Open(cfg.JournalPath, journal.Options{
			Version:     version.Version,
			EncoderMode: cfg.Encoder.Mode,
		})
		if err != nil {
			log.Fatalf("failed to open journal: %v", err)
		}
		jrnl.Start()
		log.Printf("journal %s run %s", cfg.JournalPath, jrnl.RunID())
		defer func() {
			if err := jrnl.Close(); err != nil {
				log.Printf("failed to close journal: %v", err)
			}
		}()
	}

	opts := bridge.Options{
		Commands:         commands,
		MaxSpeed:         cfg.Actuator.MaxSpeed,
		PollInterval:     cfg.GetPollInterval(),
		InertialInterval: cfg.GetIMUInterval(),
		EncoderInterval:  cfg.GetEncoderInterval(),
		StatsInterval:    cfg.GetStatsInterval(),
		Stats:            stats,
		Journal:          jrnl,
	}

	sink, serialSink := openSink(cfg)
	opts.Sink = sink

	opts.EncoderOut, err = transport.DialPublisher(bridge.StreamEncoder, cfg.DestinationAddr(cfg.Ports.Encoder), stats.Stream(bridge.StreamEncoder))
	if err != nil {
		log.Fatalf("failed to open encoder socket: %v", err)
	}
	opts.Ticks, opts.Wheels, err = openEncoders(cfg)
	if err != nil {
		log.Fatalf("failed to set up encoders: %v", err)
	}

	if src := openIMU(cfg); src != nil {
		out, err := transport.DialPublisher(bridge.StreamInertial, cfg.DestinationAddr(cfg.Ports.Inertial), stats.Stream(bridge.StreamInertial))
		if err != nil {
			log.Fatalf("failed to open imu socket: %v", err)
		}
		opts.Inertial, opts.InertialOut = src, out
	}
	if src := openLidar(cfg); src != nil {
		out, err := transport.DialPublisher(bridge.StreamLidar, cfg.DestinationAddr(cfg.Ports.Lidar), stats.Stream(bridge.StreamLidar))
		if err != nil {
			log.Fatalf("failed to open lidar socket: %v", err)
		}
		opts.Scans, opts.ScanOut = src, out
	}

	b, err := bridge.New(opts)
	if err != nil {
		log.Fatalf("failed to create bridge: %v", err)
	}

	var wg sync.WaitGroup
	if cfg.DebugListen != "" {
		mux := http.NewServeMux()
		stats.AttachAdminRoutes(mux)
		if serialSink != nil {
			serialSink.Mux().AttachAdminRoutes(mux)
		}
		if jrnl != nil {
			if err := jrnl.AttachAdminRoutes(mux); err != nil {
				log.Printf("journal admin routes disabled: %v", err)
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveDebug(ctx, cfg.DebugListen, mux)
		}()
	}

	log.Printf("bridging commands on %s, telemetry to %s", cfg.MotionAddr(), cfg.DestinationIP)
	if err := b.Run(ctx); err != nil {
		log.Printf("bridge error: %v", err)
	}

	wg.Wait()
	log.Printf("graceful shutdown complete")
}

func serveDebug(ctx context.Context, addr string, mux *http.ServeMux) {
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		log.Printf("starting debug HTTP server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("debug server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("debug server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("debug server force close error: %v", err)
		}
	}
}
