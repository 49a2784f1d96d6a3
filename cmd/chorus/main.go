package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/takumi-oki/chorus/internal/daemon"
	"github.com/takumi-oki/chorus/internal/model"
	"github.com/takumi-oki/chorus/internal/registry"
	"github.com/takumi-oki/chorus/internal/scheduler"
)

const version = "0.3.0"

func main() {
	// Optional .env for local overrides; missing file is fine.
	godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "daemon":
		runDaemon(os.Args[2:])
	case "version":
		fmt.Printf("chorus %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runDaemon(args []string) {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	configPath := fs.String("config", envOr("CHORUS_CONFIG", ""), "path to chorus.yaml")
	dataDir := fs.String("data", envOr("CHORUS_DATA_DIR", ".chorus"), "data directory (logs, lock)")
	demo := fs.Bool("demo", false, "seed the in-memory registry with sample agents and tasks")
	fs.Parse(args)

	cfg := model.DefaultConfig()
	if *configPath != "" {
		loaded, err := model.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chorus: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	reg := registry.NewMemory()
	d, err := daemon.New(*dataDir, *configPath, cfg, reg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chorus: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if *demo {
		seedDemo(ctx, reg, d)
	}

	if err := d.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "chorus: %v\n", err)
		os.Exit(1)
	}
}

// seedDemo loads a few agents and tasks and starts one job so a fresh daemon
// has something to supervise.
func seedDemo(ctx context.Context, reg *registry.Memory, d *daemon.Daemon) {
	reg.PutAgent(model.Agent{
		ID: "agent-frontend", Type: "developer",
		Specialties: []string{"frontend", "ui"}, SuccessRate: 0.91, MaxConcurrentTasks: 3,
	})
	reg.PutAgent(model.Agent{
		ID: "agent-backend", Type: "developer",
		Specialties: []string{"backend", "api"}, SuccessRate: 0.87, MaxConcurrentTasks: 3,
	})
	reg.PutAgent(model.Agent{
		ID: "agent-arch", Type: "architect",
		Specialties: []string{"system", "architecture"}, SuccessRate: 0.95, MaxConcurrentTasks: 2,
	})

	taskIDs := make([]string, 0, 2)
	for _, spec := range []registry.TaskSpec{
		{Type: "feature-frontend", Description: "demo ui task", Priority: model.PriorityHigh},
		{Type: "feature-backend", Description: "demo api task", Priority: model.PriorityMedium},
	} {
		id, err := reg.SubmitTask(ctx, spec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chorus: seed task: %v\n", err)
			return
		}
		taskIDs = append(taskIDs, id)
	}

	jobID, err := d.Scheduler.ScheduleJob(scheduler.JobSpec{
		Kind:           model.JobKindManual,
		Name:           "demo job",
		TaskIDs:        taskIDs,
		Priority:       model.PriorityHigh,
		TimeoutMinutes: 10,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "chorus: seed job: %v\n", err)
		return
	}
	if _, err := d.Scheduler.StartJob(ctx, jobID); err != nil {
		fmt.Fprintf(os.Stderr, "chorus: start demo job: %v\n", err)
		return
	}

	// Let the demo resolve on its own after a while.
	go func() {
		time.Sleep(30 * time.Second)
		for _, id := range taskIDs {
			reg.SetTaskStatus(id, model.TaskStatusCompleted)
		}
	}()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage() {
	fmt.Println(`chorus - background job orchestration and multi-agent coordination

Usage:
  chorus daemon [-config chorus.yaml] [-data .chorus] [-demo]
  chorus version
  chorus help`)
}
