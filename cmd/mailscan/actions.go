package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/fatih/color"

	"mailscan/internal/common/logger"
	"mailscan/internal/graph"
	"mailscan/internal/render"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed)
)

// executeAction dispatches to the requested action handler.
func executeAction(ctx context.Context, client *graph.Client, config *Config, slogger *slog.Logger, csvLogger *logger.CSVLogger) error {
	switch config.Action {
	case "folders":
		return listFolders(ctx, client, config, csvLogger)
	case "scan":
		return runScan(ctx, client, config, slogger, csvLogger)
	default:
		// validateConfiguration only lets scan/folders through
		return fmt.Errorf("unhandled action: %s", config.Action)
	}
}

// listFolders prints every mail folder of each requested mailbox.
func listFolders(ctx context.Context, client *graph.Client, config *Config, csvLogger *logger.CSVLogger) error {
	if csvLogger != nil {
		if fresh, err := csvLogger.ShouldWriteHeader(); err == nil && fresh {
			csvLogger.WriteHeader([]string{"Mailbox", "FolderID", "FolderName"})
		}
	}

	for _, user := range config.UserList {
		folders, err := client.ListFolders(ctx, user)
		if err != nil {
			return err
		}

		fmt.Printf("\nFolders in %s:\n", user)
		for _, f := range folders {
			fmt.Printf("  %-30s %s\n", f.DisplayName, f.ID)
			if csvLogger != nil {
				csvLogger.WriteRow([]string{user, f.ID, f.DisplayName})
			}
		}
		okColor.Printf("%d folders\n", len(folders))
	}
	return nil
}

// runScan executes the mailbox scan and renders the merged result.
func runScan(ctx context.Context, client *graph.Client, config *Config, slogger *slog.Logger, csvLogger *logger.CSVLogger) error {
	spec := graph.ScanSpec{
		Users:   config.UserList,
		Folders: config.FolderList,
		Senders: config.SenderList,
		Start:   config.StartTime,
		End:     config.EndTime,
		Count:   config.Count,
		Order:   graph.Order(config.Sort),
		Mode:    graph.Mode(config.API),
	}

	scanner := graph.NewScanner(client, slogger)
	if csvLogger != nil {
		if fresh, err := csvLogger.ShouldWriteHeader(); err == nil && fresh {
			csvLogger.WriteHeader([]string{"Mailbox", "Folder", "Messages", "Status"})
		}
		scanner.Audit = func(user, folder string, fetched int, err error) {
			status := "ok"
			if err != nil {
				status = err.Error()
			}
			csvLogger.WriteRow([]string{user, folder, strconv.Itoa(fetched), status})
		}
	}

	res, err := scanner.Run(ctx, spec)
	if err != nil {
		return err
	}

	opts := render.Options{Location: config.Location}
	switch config.Output {
	case "json":
		if err := render.JSON(os.Stdout, res.Messages, opts); err != nil {
			return err
		}
	default:
		render.Table(os.Stdout, res.Messages, opts)
	}

	if config.CSVPath != "" {
		if err := exportCSV(config.CSVPath, res.Messages, opts); err != nil {
			return err
		}
		okColor.Printf("Results exported to %s\n", config.CSVPath)
	}

	totalQueries := len(spec.Users) * len(spec.Folders)
	if len(res.Failures) > 0 {
		warnColor.Fprintf(os.Stderr, "\n%d of %d folder queries failed:\n", len(res.Failures), totalQueries)
		for _, f := range res.Failures {
			failColor.Fprintf(os.Stderr, "  - %v\n", f)
		}
	}
	okColor.Printf("\nScan complete: %d messages from %d folder queries\n",
		len(res.Messages), totalQueries-len(res.Failures))

	return nil
}

func exportCSV(path string, msgs []graph.Message, opts render.Options) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create CSV export %s: %w", path, err)
	}
	defer file.Close()

	if err := render.WriteCSV(file, msgs, opts); err != nil {
		return err
	}
	return file.Close()
}
