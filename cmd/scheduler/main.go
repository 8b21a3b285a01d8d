// Command scheduler runs one pass of a periodic job and exits. It is meant
// to be called from cron.
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

	"go.uber.org/zap"

	"diagnostics-api/config"
	"diagnostics-api/services"
)

const usage = "usage: scheduler [flags] onboarding-reminders|deadlines|pending-documents"

func main() {
	var lockName string
	flag.StringVar(&lockName, "lock-name", "", "MySQL advisory lock name for onboarding reminders (defaults to ONBOARDING_REMINDER_LOCK)")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logFile, logger := config.InitLogging(cfg.IsProduction())
	if logFile != nil {
		defer logFile.Close()
	}
	defer func() { _ = logger.Sync() }()

	cfg.AutoMigrate = false
	if err := config.InitDB(cfg); err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if lockName == "" {
		lockName = cfg.OnboardingReminderLock
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifications := services.NewNotificationService(config.DB, logger)
	job := flag.Arg(0)

	var failed bool
	switch job {
	case "onboarding-reminders":
		emails := services.NewEmailService(config.NewSMTPMailer(cfg), cfg.FrontendURL, cfg.EmailLogoURL, logger).
			WithAssetBaseURL(cfg.PublicBaseURL)
		reminders := services.NewOnboardingReminderService(config.DB, emails, lockName, logger)
		summary, err := reminders.ProcessAll(ctx)
		if err != nil {
			if errors.Is(err, services.ErrOnboardingRemindersAlreadyRunning) {
				log.Fatal("onboarding reminders already running (advisory lock held)")
			}
			log.Fatalf("onboarding reminders failed: %v", err)
		}
		fmt.Printf("Projects: %d, sent: %d, failed: %d\n", summary.Projects, summary.Sent, summary.Failed)
		failed = summary.Failed > 0
	case "deadlines":
		n, err := notifications.ProcessDeadlines(ctx)
		if err != nil {
			log.Fatalf("deadline notifications failed: %v", err)
		}
		fmt.Printf("Deadline notifications: %d\n", n)
	case "pending-documents":
		n, err := notifications.ProcessPendingDocuments(ctx)
		if err != nil {
			log.Fatalf("pending document notifications failed: %v", err)
		}
		fmt.Printf("Pending document notifications: %d\n", n)
	default:
		flag.Usage()
		os.Exit(1)
	}

	if failed {
		os.Exit(2)
	}
}
