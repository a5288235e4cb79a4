package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-planar/internal/config"
	"github.com/teslashibe/go-planar/internal/log"
	"github.com/teslashibe/go-planar/pkg/control"
	"github.com/teslashibe/go-planar/pkg/obstacle"
	"github.com/teslashibe/go-planar/pkg/robot"
	"github.com/teslashibe/go-planar/pkg/sim"
	"github.com/teslashibe/go-planar/pkg/web"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "YAML config file (defaults built in)")
	serve := flag.Bool("serve", false, "Serve the HTTP/websocket control surface instead of running scripted moves")
	remote := flag.String("remote", "", "Run the scripted moves against a remote server (e.g. http://localhost:8080)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	log.Init(cfg.Log.Level, cfg.Log.Format)

	fmt.Println("🦾 Planar Manipulator Simulator")
	fmt.Printf("   Links: %v\n", cfg.Arm.Lengths)
	fmt.Printf("   Mode:  %s (T=%.3fs, λ=%.3f)\n", cfg.Control.Mode, cfg.Control.Period, cfg.Control.Damping)
	fmt.Println()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Shutting down...")
		cancel()
	}()

	if *remote != "" {
		if err := runRemote(ctx, cfg, *remote); err != nil {
			log.Error("remote run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	arm, ctrl, field, err := build(cfg)
	if err != nil {
		log.Error("setup failed", "error", err)
		os.Exit(1)
	}

	if *serve {
		runServer(ctx, cfg, arm, ctrl, field)
		return
	}

	if err := runScript(ctx, cfg, arm, ctrl, field); err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
	fmt.Println("👋 Goodbye!")
}

func build(cfg *config.Config) (*robot.Chain, *control.Controller, *obstacle.Field, error) {
	arm, err := robot.NewChain(cfg.Arm.Lengths, cfg.Arm.Home)
	if err != nil {
		return nil, nil, nil, err
	}
	field, err := obstacle.NewField(cfg.Obstacles.Step, cfg.ObstacleList()...)
	if err != nil {
		return nil, nil, nil, err
	}
	ctrlCfg, err := cfg.ControlConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	ctrl, err := control.NewController(arm, field, ctrlCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return arm, ctrl, field, nil
}

func runScript(ctx context.Context, cfg *config.Config, arm *robot.Chain, ctrl *control.Controller, field *obstacle.Field) error {
	loop := sim.NewLoop(arm, ctrl,
		sim.WithObstacles(field),
		sim.WithInput(sim.NewScriptInput(cfg.Input...)),
		sim.WithRecorder(sim.NewLogRecorder(log.L())),
		sim.WithDraw(cfg.Sim.DrawStep, printFrame),
		sim.WithRealtime(cfg.Sim.Realtime),
		sim.WithLogger(log.L()),
	)

	for i, m := range cfg.Moves {
		fmt.Printf("➡️  Move %d/%d to (%.3f, %.3f) over %.2fs\n", i+1, len(cfg.Moves), m.X, m.Y, m.Duration)
		res, err := loop.Move(ctx, m.Target(), m.Duration)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("move %d: %w", i+1, err)
		}
		fmt.Printf("✅ Reached (%.4f, %.4f) in %d steps, error %.2e\n", res.Final.X, res.Final.Y, res.Steps(), res.Error)
	}
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, arm *robot.Chain, ctrl *control.Controller, field *obstacle.Field) {
	srv := web.NewServer(cfg.Server.Port, arm, ctrl, field, cfg.Sim.DrawStep,
		sim.WithRealtime(cfg.Sim.Realtime),
		sim.WithRecorder(sim.NewLogRecorder(log.L())),
		sim.WithLogger(log.L()),
	)
	srv.StartAsync()

	fmt.Printf("🌐 Control surface: http://localhost:%s/api/state\n", cfg.Server.Port)
	fmt.Printf("📡 Telemetry: ws://localhost:%s/ws/telemetry\n", cfg.Server.Port)

	<-ctx.Done()
	if err := srv.Shutdown(); err != nil {
		log.Warn("shutdown error", "error", err)
	}
}

func runRemote(ctx context.Context, cfg *config.Config, baseURL string) error {
	client := web.NewClient(baseURL)

	for _, command := range cfg.Input {
		if err := client.Input(ctx, command); err != nil {
			return err
		}
	}
	for i, m := range cfg.Moves {
		res, err := client.Move(ctx, web.MoveRequest{X: m.X, Y: m.Y, Duration: m.Duration})
		if err != nil {
			return fmt.Errorf("move %d: %w", i+1, err)
		}
		fmt.Printf("✅ [%s] reached (%.4f, %.4f) in %d steps\n", res.RunID[:8], res.Final.X, res.Final.Y, res.Steps())
	}
	return nil
}

func printFrame(f sim.Frame) {
	fmt.Printf("   t=%.2fs  ee=(%.3f, %.3f)  desired=(%.3f, %.3f)\n",
		f.Time, f.Current.X, f.Current.Y, f.Desired.X, f.Desired.Y)
}
