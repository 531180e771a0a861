package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rahul/questd/internal/agent"
	"github.com/rahul/questd/internal/gateway"
	"github.com/rahul/questd/internal/governance"
	"github.com/rahul/questd/internal/memory"
	"github.com/rahul/questd/internal/observability"
	"github.com/rahul/questd/internal/store"
	"github.com/rahul/questd/internal/tools"
	"github.com/rahul/questd/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

func main() {
	cfg := config.LoadConfig("config.json")

	goals, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer goals.Close()

	// One-shot backlog commands: add / cancel / unblock, then exit.
	if len(os.Args) > 1 {
		runBacklogCommand(goals, os.Args[1:])
		return
	}

	observability.PrintBanner()

	// Route all log output through the terminal mutex so it never
	// interrupts the live status line.
	log.SetOutput(observability.NewTermWriter())

	memories, err := memory.NewStore(cfg.Memory.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer memories.Close()

	files := tools.NewFilesystem(cfg.App.AllowedRoots)
	shell := tools.NewShell(cfg.App.ProjectRoot)
	runner := tools.NewRunner(files, shell)

	gov := governance.NewDefaultPolicyEngine()
	// Default safety rules: never activate goals that ask for destruction
	// or escalation outright.
	_ = gov.DenyDescription(`(?i)rm\s+-rf`)
	_ = gov.DenyDescription(`(?i)\bsudo\b`)
	_ = gov.DenyDescription(`(?i)delete\s+all`)

	logger := observability.NewLogger()
	status := observability.NewStatus()

	// Initialize LLM (using default enabled provider)
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		log.Fatal("No enabled provider found in config")
	}

	var llm llms.Model
	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		log.Fatalf("Provider %s not yet implemented in main", pName)
	}
	if err != nil {
		log.Fatal(err)
	}

	planner := agent.NewPlanner(llm, memories, logger)
	executor := agent.NewExecutor(goals, runner, logger, status)
	recorder := agent.NewOutcomeRecorder(memories)
	reflector := agent.NewReflector(memories, agent.NewKeywordDetector(), logger)

	scheduler := &agent.Scheduler{
		Store:              goals,
		Planner:            planner,
		Executor:           executor,
		Recorder:           recorder,
		Reflector:          reflector,
		Policy:             gov,
		Prioritizer:        agent.NewPrioritizer(),
		Logger:             logger,
		Status:             status,
		GoalInterval:       time.Duration(cfg.Scheduler.GoalIntervalSeconds) * time.Second,
		ReflectionInterval: time.Duration(cfg.Scheduler.ReflectionIntervalSeconds) * time.Second,
	}

	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err := gateway.NewTelegramNotifier(tgCfg.Token)
		if err != nil {
			log.Printf("Warning: Telegram notifier disabled: %v", err)
		} else {
			defer tg.Stop()
			scheduler.Gateway = tg
			scheduler.NotifyChatID = tgCfg.ChatID
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go scheduler.Start(ctx)

	// Live status line (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus(status)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.LogHeartbeat()
			}
		}
	}()

	<-ctx.Done()

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("Scheduler stopped. Goodbye.")
}

func runBacklogCommand(goals *store.Store, args []string) {
	ctx := context.Background()

	switch args[0] {
	case "add":
		if len(args) < 2 {
			log.Fatal("usage: questd add <description> [priority] [category]")
		}
		draft := store.GoalDraft{Description: args[1], Priority: 5}
		if len(args) > 2 {
			p, err := strconv.Atoi(args[2])
			if err != nil {
				log.Fatalf("invalid priority %q: %v", args[2], err)
			}
			draft.Priority = p
		}
		if len(args) > 3 {
			draft.Category = store.GoalCategory(args[3])
		}
		g, err := goals.CreateGoal(ctx, draft)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("created goal %s", g.ID)

	case "cancel":
		if len(args) < 2 {
			log.Fatal("usage: questd cancel <goal-id>")
		}
		if err := goals.CancelGoal(ctx, args[1]); err != nil {
			log.Fatal(err)
		}

	case "unblock":
		if len(args) < 2 {
			log.Fatal("usage: questd unblock <goal-id>")
		}
		if err := goals.Unblock(ctx, args[1]); err != nil {
			log.Fatal(err)
		}

	default:
		log.Fatalf("unknown command %q (expected add, cancel, or unblock)", args[0])
	}
}
