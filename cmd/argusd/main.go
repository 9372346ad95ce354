// Package main is the entry point for the argusd portal simulator.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/telescopiosnaescola/argus/internal/simulator"
)

func main() {
	listenAddress := flag.String("listen", ":8800", "HTTP listen address")
	telescopeName := flag.String("telescope", "argus", "simulated telescope name")
	siteLatitude := flag.Float64("lat", -22.534, "observatory latitude in degrees")
	siteLongitude := flag.Float64("lon", -45.583, "observatory longitude in degrees")
	minAltitude := flag.Float64("min-altitude", 30, "minimum observable altitude in degrees")
	filters := flag.String("filters", "R,G,B,UV,IR", "comma separated filter list")
	sessionSecret := flag.String("session-secret", "", "secret for signing session cookies (required)")
	seedEmail := flag.String("seed-email", "", "seed an account with this email")
	seedPassword := flag.String("seed-password", "", "password for the seeded account")
	seedAdmin := flag.Bool("seed-admin", false, "make the seeded account an admin")
	slewDuration := flag.Duration("slew-duration", 2*time.Second, "simulated slew duration")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	var logger *zap.Logger
	var err error

	switch *logLevel {
	case "debug":
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer logger.Sync()

	if *sessionSecret == "" {
		logger.Fatal("A session secret is required, pass -session-secret")
	}

	logger.Info("Starting Argus portal simulator",
		zap.String("listen", *listenAddress),
		zap.String("telescope", *telescopeName),
		zap.Float64("lat", *siteLatitude),
		zap.Float64("lon", *siteLongitude))

	config := &simulator.Config{
		ListenAddress: *listenAddress,
		TelescopeName: *telescopeName,
		SiteLatitude:  *siteLatitude,
		SiteLongitude: *siteLongitude,
		MinAltitude:   *minAltitude,
		Filters:       strings.Split(*filters, ","),
		SessionSecret: *sessionSecret,
		SlewDuration:  *slewDuration,
	}

	server, err := simulator.NewServer(config, logger)
	if err != nil {
		logger.Fatal("Failed to create simulator", zap.Error(err))
	}

	if *seedEmail != "" {
		if *seedPassword == "" {
			logger.Fatal("Seeding an account requires -seed-password")
		}
		if err := server.Seed(*seedEmail, "Seeded Account", *seedPassword, *seedAdmin); err != nil {
			logger.Fatal("Failed to seed account", zap.Error(err))
		}
		logger.Info("Seeded account", zap.String("email", *seedEmail), zap.Bool("admin", *seedAdmin))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("Simulator failed", zap.Error(err))
	}

	logger.Info("Portal simulator stopped")
}
