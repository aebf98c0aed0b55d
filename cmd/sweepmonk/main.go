package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zohan724/SweepMonk/internal/biz"
	"github.com/zohan724/SweepMonk/internal/biz/domain"
	"github.com/zohan724/SweepMonk/internal/biz/usecase"
	"github.com/zohan724/SweepMonk/internal/conf"
	"github.com/zohan724/SweepMonk/internal/data"
	"github.com/zohan724/SweepMonk/internal/filter"
	"github.com/zohan724/SweepMonk/internal/server"
	"github.com/zohan724/SweepMonk/internal/service"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid config")
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// Initialize repository layer
	repos, err := data.NewRepositories(cfg.DBPath, cfg.DefaultChatSettings())
	if err != nil {
		logrus.WithError(err).Fatal("failed to create repositories")
	}
	defer repos.Close()

	logrus.WithField("path", cfg.DBPath).Info("database opened")

	ruleFile := data.NewRuleFileRepo(cfg.KeywordsPath, cfg.PatternPrefix)
	transport := data.NewLogTransport(cfg.AdminIDs)

	judge := data.NewLLMJudge(cfg.Judge.APIKey, cfg.Judge.BaseURL, cfg.Judge.Model)
	if judge != nil {
		logrus.Info("LLM spam judge enabled")
	}

	// Initialize usecase layer
	engine := filter.NewEngine(cfg.PatternPrefix)
	sched := service.NewScheduler()
	keys := usecase.NewKeyedMutex()
	notifier := service.NewNotifier(transport, rate.Every(10*time.Second), 3)

	ucs := &biz.Usecases{
		Enforcement: usecase.NewEnforcementCoordinator(
			transport, repos.Violations, repos.Settings, judge, sched, notifier, keys, cfg.DedupWindow),
		Verification: usecase.NewVerificationUsecase(
			transport, repos.Verifications, repos.Settings, sched, keys),
		Stats: usecase.NewStatsUsecase(repos.Violations, repos.Verifications),
	}

	bot := server.NewBot(transport, engine, ucs.Enforcement, ucs.Verification, ucs.Stats, repos.Settings, ruleFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bot.LoadRules(ctx); err != nil {
		logrus.WithError(err).Fatal("failed to load rules")
	}

	// Timer backup: re-check expired verifications in case a timer was lost
	sweeper := service.NewSweeper(ucs.Verification, cfg.SweepInterval)
	sweeper.Start()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logrus.Info("shutting down")
		cancel()
		sweeper.Stop()
		sched.Stop()
		os.Exit(0)
	}()

	logrus.WithField("bot", cfg.BotName).Info("started in dry-run console mode")
	runConsole(ctx, bot)
}

// serveMetrics exposes Prometheus metrics
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logrus.WithField("addr", addr).Info("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.WithError(err).Error("metrics server stopped")
	}
}

// runConsole reads chat events from stdin, one per line:
//
//	msg <chat> <user> <msgid> <text...>
//	join <chat> <user>
//	verify <chat> <user> <token>
func runConsole(ctx context.Context, bot *server.Bot) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		now := time.Now()
		switch fields[0] {
		case "msg":
			if len(fields) < 5 {
				fmt.Println("usage: msg <chat> <user> <msgid> <text...>")
				continue
			}
			bot.HandleMessage(ctx, domain.MessageEvent{
				ChatID:    fields[1],
				UserID:    fields[2],
				MessageID: fields[3],
				Text:      strings.Join(fields[4:], " "),
				Timestamp: now,
			})
		case "join":
			if len(fields) < 3 {
				fmt.Println("usage: join <chat> <user>")
				continue
			}
			bot.HandleJoin(ctx, domain.JoinEvent{
				ChatID:    fields[1],
				UserID:    fields[2],
				Timestamp: now,
			})
		case "verify":
			if len(fields) < 4 {
				fmt.Println("usage: verify <chat> <user> <token>")
				continue
			}
			bot.HandleChallengeResponse(ctx, domain.ChallengeResponseEvent{
				ChatID:    fields[1],
				UserID:    fields[2],
				Token:     fields[3],
				Timestamp: now,
			})
		case "quit", "exit":
			return
		default:
			fmt.Println("commands: msg, join, verify, quit")
		}
	}
}
