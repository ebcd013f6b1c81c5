// Package main provides a CLI tool that queries Microsoft Graph for mail
// messages across Exchange Online mailboxes and folders, filtered by sender
// and date range, and renders the merged result as a table, JSON or CSV.
//
// Authentication uses the OAuth2 client-credentials flow with either a client
// secret (from a dotenv credential file, with the acquired token cached back
// into it) or a PFX certificate file.
//
// Scan runs are logged to action-specific CSV files in the system temp
// directory for audit and troubleshooting purposes.
//
// Example usage:
//
//	mailscan -action scan -user user@example.com -from acme.com -mindate 2024-01-01 -maxdate 2024-01-31
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mailscan/internal/auth"
	"mailscan/internal/common/logger"
	"mailscan/internal/common/security"
	"mailscan/internal/common/version"
	"mailscan/internal/envfile"
	"mailscan/internal/graph"
)

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

// setupSignalHandling configures graceful shutdown on interrupt signals
// Returns a cancellable context for use throughout the application
func setupSignalHandling() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n\nReceived interrupt signal. Shutting down gracefully...")
		cancel()
	}()

	return ctx, cancel
}

// initializeServices sets up the CSV audit log for the action being run.
// If CSV logger initialization fails, a warning is logged but execution
// continues without it.
func initializeServices(config *Config) *logger.CSVLogger {
	csvLogger, err := logger.NewCSVLogger("mailscan", config.Action)
	if err != nil {
		log.Printf("Warning: Could not initialize CSV logging: %v", err)
		return nil
	}
	return csvLogger
}

// setupTokenSource builds the token source for Graph requests: a client
// certificate when -pfx is given, otherwise the cached client-secret flow
// primed from (and persisted to) the credential file.
func setupTokenSource(config *Config, slogger *slog.Logger) (auth.TokenSource, error) {
	creds, err := envfile.Load(config.EnvFile)
	if err != nil {
		return nil, err
	}

	slogger.Debug("credentials loaded",
		"tenantID", security.MaskGUID(creds.TenantID),
		"clientID", security.MaskGUID(creds.ClientID))

	if config.PfxPath != "" {
		return auth.NewCertificateSource(creds.TenantID, creds.ClientID, config.PfxPath, config.PfxPass, slogger)
	}

	cache := auth.NewTokenCache(auth.Credential{
		TenantID:     creds.TenantID,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
	}, &auth.CacheOptions{
		Store:  envfile.TokenStore{Path: config.EnvFile},
		Logger: slogger,
	})
	if creds.AccessToken != "" {
		cache.Prime(creds.AccessToken, creds.TokenTimestamp)
		logger.LogVerbose(config.VerboseMode, "Primed cached token from %s (acquired %s)",
			config.EnvFile, creds.TokenTimestamp.Format(time.RFC3339))
	}
	return cache, nil
}

// run is the main application entry point that orchestrates the tool's
// execution flow:
//  1. Sets up graceful shutdown handling for interrupt signals
//  2. Parses and validates configuration from flags and environment variables
//  3. Runs the interactive menus when asked to
//  4. Initializes the CSV audit log and the Graph client
//  5. Executes the requested action (scan, folders)
func run() error {
	// 1. Setup signal handling for graceful shutdown
	ctx, cancel := setupSignalHandling()
	defer cancel()

	// 2. Parse command-line flags and apply environment variables
	config := parseAndConfigureFlags()

	// 3. Handle version flag early exit
	if config.ShowVersion {
		fmt.Printf("mailscan - Exchange Online Mailbox Scanner - Version %s\n", version.Get())
		return nil
	}

	// 4. Validate configuration
	if err := validateConfiguration(config); err != nil {
		fmt.Printf("Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	// 5. Setup structured logger
	slogger := logger.SetupLogger(config.VerboseMode, config.LogLevel)
	slogger.Info("Application starting", "version", version.Get(), "action", config.Action)

	// 6. Interactive selection fills the scan parameters in menu mode
	if config.Action == "menu" {
		if err := runMenu(config); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		config.Action = "scan"
	}

	// 7. Initialize CSV audit logging
	csvLogger := initializeServices(config)
	if csvLogger != nil {
		defer csvLogger.Close()
	}

	// 8. Setup the token source and Graph client
	src, err := setupTokenSource(config, slogger)
	if err != nil {
		return err
	}

	if config.VerboseMode {
		printTokenInfo(ctx, src)
	}

	client := graph.NewClient(src, &graph.ClientOptions{Logger: slogger})

	// 9. Execute the requested action
	return executeAction(ctx, client, config, slogger, csvLogger)
}

// printTokenInfo shows a masked token preview and its JWT claims.
func printTokenInfo(ctx context.Context, src auth.TokenSource) {
	token, err := src.Token(ctx)
	if err != nil {
		logger.LogVerbose(true, "Warning: Could not retrieve token for verbose display: %v", err)
		return
	}

	fmt.Println()
	fmt.Println("Token Information:")
	fmt.Println("------------------")
	fmt.Printf("Token (masked): %s\n", security.MaskAccessToken(token))
	fmt.Printf("Token length: %d characters\n", len(token))

	fmt.Println()
	fmt.Println("JWT Claims:")
	appName, roles, err := auth.ParseTokenClaims(token)
	if err != nil {
		fmt.Printf("  (Could not parse JWT claims: %v)\n", err)
	} else {
		fmt.Printf("  Application Name: %s\n", appName)
		fmt.Printf("  Assigned Roles: %s\n", roles)
	}
	fmt.Println()
}
