package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"mailscan/internal/common/validation"
	"mailscan/internal/selection"
)

var (
	menuTitle  = color.New(color.FgCyan, color.Bold)
	menuPrompt = color.New(color.FgGreen)
	menuWarn   = color.New(color.FgYellow)
)

// runMenu drives the interactive mode: mailboxes, sender domains and folders
// are picked from list files, then the date range is prompted with defaults.
// On success the config carries a complete scan specification.
func runMenu(config *Config) error {
	reader := bufio.NewReader(os.Stdin)

	// Mailboxes
	users, err := selection.ReadList(config.UsersFile)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return fmt.Errorf("no entries in %s", config.UsersFile)
	}
	chosen, _, err := pickFromList(reader, "Select mailboxes to scan", users,
		selection.Options{AllowAll: true})
	if err != nil {
		return err
	}
	config.UserList = selection.ExpandAll(chosen, users)
	if err := validation.ValidateEmails(config.UserList, "users file"); err != nil {
		return err
	}

	// Sender filter (optional)
	if err := pickSenders(reader, config); err != nil {
		return err
	}

	// Folders
	if folders, err := selection.ReadList(config.FoldersFile); err == nil && len(folders) > 0 {
		chosen, _, err := pickFromList(reader, "Select folders", folders,
			selection.Options{AllowAll: true})
		if err != nil {
			return err
		}
		config.FolderList = selection.ExpandAll(chosen, folders)
	} else {
		menuWarn.Printf("No folder list (%s); scanning inbox only\n", config.FoldersFile)
		config.FolderList = []string{"inbox"}
	}

	// Date range
	now := time.Now().UTC()
	config.MinDate = promptWithDefault(reader, "Range start (YYYY-MM-DD)", now.AddDate(0, 0, -10).Format("2006-01-02"))
	config.MaxDate = promptWithDefault(reader, "Range end (YYYY-MM-DD)", now.Format("2006-01-02"))
	if err := validateDates(config); err != nil {
		return err
	}

	menuTitle.Println("\nScan parameters:")
	fmt.Printf("  Mailboxes: %s\n", strings.Join(config.UserList, ", "))
	if len(config.SenderList) > 0 {
		fmt.Printf("  Senders:   %s\n", strings.Join(config.SenderList, ", "))
	} else {
		fmt.Printf("  Senders:   (no filter)\n")
	}
	fmt.Printf("  Folders:   %s\n", strings.Join(config.FolderList, ", "))
	fmt.Printf("  Range:     %s .. %s\n", config.MinDate, config.MaxDate)
	return nil
}

// pickSenders runs the sender-domain menu when a domain list exists. X skips
// the filter entirely; T switches to a typed-in value.
func pickSenders(reader *bufio.Reader, config *Config) error {
	domains, err := selection.ReadList(config.DomainsFile)
	if err != nil || len(domains) == 0 {
		menuWarn.Printf("No sender list (%s); scanning without a sender filter\n", config.DomainsFile)
		return nil
	}

	chosen, kind, err := pickFromList(reader, "Select sender domains", domains,
		selection.Options{AllowAll: true, AllowSkip: true, AllowCustom: true})
	if err != nil {
		return err
	}

	switch kind {
	case selection.KindSkip:
		config.SenderList = nil
	case selection.KindCustom:
		menuPrompt.Print("Enter sender address(es) or domain(s), comma-separated: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		config.SenderList = splitCSV(line)
	default:
		config.SenderList = selection.ExpandAll(chosen, domains)
	}
	return nil
}

// pickFromList shows a numbered menu and reads selections until one parses.
func pickFromList(reader *bufio.Reader, title string, entries []string, opts selection.Options) ([]string, selection.Kind, error) {
	menuTitle.Printf("\n%s\n", title)
	for i, entry := range entries {
		fmt.Printf("  %2d) %s\n", i+1, entry)
	}

	shortcuts := []string{"numbers like 1,3"}
	if opts.AllowAll {
		shortcuts = append(shortcuts, "A = all")
	}
	if opts.AllowSkip {
		shortcuts = append(shortcuts, "X = skip")
	}
	if opts.AllowCustom {
		shortcuts = append(shortcuts, "T = type a value")
	}

	for {
		menuPrompt.Printf("Selection (%s): ", strings.Join(shortcuts, ", "))
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, 0, fmt.Errorf("reading input: %w", err)
		}

		sel, err := selection.Parse(line, len(entries), opts)
		if err != nil {
			menuWarn.Println(err)
			continue
		}
		return selection.Apply(sel, entries), sel.Kind, nil
	}
}

// promptWithDefault reads a line, falling back to def on empty input.
func promptWithDefault(reader *bufio.Reader, label, def string) string {
	menuPrompt.Printf("%s [%s]: ", label, def)
	line, err := reader.ReadString('\n')
	if err != nil {
		return def
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}
