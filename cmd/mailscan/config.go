package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mailscan/internal/common/validation"
	"mailscan/internal/common/version"
	"mailscan/internal/graph"
)

// Config holds all configuration for mailscan.
type Config struct {
	// Action
	Action string // scan, folders, menu

	// Credentials
	EnvFile string // dotenv file with TENANT_ID/CLIENT_ID/CLIENT_SECRET
	PfxPath string // PKCS#12 certificate, replaces the client secret
	PfxPass string

	// Query settings (comma-separated where plural)
	Users   string
	Folders string
	Senders string
	MinDate string
	MaxDate string
	Count   int
	Sort    string // latest, earliest
	API     string // search, filter

	// Output
	Output   string // table, json
	CSVPath  string // optional CSV export target
	Timezone string // display timezone, IANA name

	// Menu mode list files
	UsersFile   string
	DomainsFile string
	FoldersFile string

	// Logging
	VerboseMode bool
	LogLevel    string

	// Other
	ShowVersion bool

	// Derived during validation
	UserList   []string
	FolderList []string
	SenderList []string
	StartTime  time.Time
	EndTime    time.Time
	Location   *time.Location
}

// NewConfig creates a new Config with sensible default values.
func NewConfig() *Config {
	return &Config{
		EnvFile:     ".env",
		Folders:     "inbox",
		Sort:        "latest",
		API:         "search",
		Output:      "table",
		UsersFile:   "users.txt",
		DomainsFile: "domains.txt",
		FoldersFile: "folders.txt",
		LogLevel:    "info",
	}
}

// parseAndConfigureFlags parses command-line flags and environment variables.
func parseAndConfigureFlags() *Config {
	config := NewConfig()

	// Define flags
	flag.StringVar(&config.Action, "action", "", "Action to perform: scan, folders, menu (env: MAILSCANACTION)")
	flag.StringVar(&config.EnvFile, "env", ".env", "Credential file with TENANT_ID, CLIENT_ID, CLIENT_SECRET (env: MAILSCANENVFILE)")
	flag.StringVar(&config.PfxPath, "pfx", "", "PFX certificate file, used instead of the client secret (env: MAILSCANPFX)")
	flag.StringVar(&config.PfxPass, "pfxpass", "", "PFX certificate password (env: MAILSCANPFXPASS)")
	flag.StringVar(&config.Users, "user", "", "Mailbox address(es), comma-separated (env: MAILSCANUSERS)")
	flag.StringVar(&config.Folders, "folder", "inbox", "Folder name(s), comma-separated (env: MAILSCANFOLDERS)")
	flag.StringVar(&config.Senders, "from", "", "Sender address(es) or domain(s), comma-separated (env: MAILSCANFROM)")
	flag.StringVar(&config.MinDate, "mindate", "", "Range start, YYYY-MM-DD (default: 10 days ago) (env: MAILSCANMINDATE)")
	flag.StringVar(&config.MaxDate, "maxdate", "", "Range end, YYYY-MM-DD (default: today) (env: MAILSCANMAXDATE)")
	flag.IntVar(&config.Count, "count", 0, "Max messages in the result; 0 fetches everything (env: MAILSCANCOUNT)")
	flag.StringVar(&config.Sort, "sort", "latest", "Sort order: latest, earliest (env: MAILSCANSORT)")
	flag.StringVar(&config.API, "api", "search", "Query style: search ($search) or filter ($filter) (env: MAILSCANAPI)")
	flag.StringVar(&config.Output, "output", "table", "Output format: table, json (env: MAILSCANOUTPUT)")
	flag.StringVar(&config.CSVPath, "csv", "", "Also export results to this CSV file (env: MAILSCANCSV)")
	flag.StringVar(&config.Timezone, "tz", "", "Display timezone, IANA name (default: UTC) (env: MAILSCANTZ)")
	flag.StringVar(&config.UsersFile, "users", "users.txt", "Mailbox list file for menu mode (env: MAILSCANUSERSFILE)")
	flag.StringVar(&config.DomainsFile, "domains", "domains.txt", "Sender domain list file for menu mode (env: MAILSCANDOMAINSFILE)")
	flag.StringVar(&config.FoldersFile, "folderlist", "folders.txt", "Folder list file for menu mode (env: MAILSCANFOLDERSFILE)")
	flag.BoolVar(&config.VerboseMode, "verbose", false, "Enable verbose output (env: MAILSCANVERBOSE)")
	flag.StringVar(&config.LogLevel, "loglevel", "info", "Log level: debug, info, warn, error (env: MAILSCANLOGLEVEL)")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version information")

	// Custom usage
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "mailscan - Exchange Online Mailbox Scanner - Version %s\n\n", version.Get())
		fmt.Fprintf(os.Stderr, "Queries Microsoft Graph for mail across mailboxes and folders.\n\n")
		fmt.Fprintf(os.Stderr, "Actions:\n")
		fmt.Fprintf(os.Stderr, "  scan     Query messages by sender and date range\n")
		fmt.Fprintf(os.Stderr, "  folders  List a mailbox's mail folders\n")
		fmt.Fprintf(os.Stderr, "  menu     Pick mailboxes, senders and folders interactively from list files\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mailscan -action scan -user a@example.com -from acme.com -mindate 2024-01-01 -maxdate 2024-01-31\n")
		fmt.Fprintf(os.Stderr, "  mailscan -action scan -user a@example.com,b@example.com -folder inbox,sentitems -count 25\n")
		fmt.Fprintf(os.Stderr, "  mailscan -action scan -user a@example.com -api filter -from alerts@acme.com -sort earliest\n")
		fmt.Fprintf(os.Stderr, "  mailscan -action folders -user a@example.com\n")
		fmt.Fprintf(os.Stderr, "  mailscan -action menu -users users.txt -domains domains.txt\n")
	}

	flag.Parse()

	// Track which flags were explicitly set via command line
	providedFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		providedFlags[f.Name] = true
	})

	// Read from environment variables if not set via flags
	// Note: Using MAILSCAN* prefix (no underscore) for consistency
	envString := func(flagName, envName string, dst *string) {
		if !providedFlags[flagName] {
			if v := os.Getenv(envName); v != "" {
				*dst = v
			}
		}
	}
	envString("action", "MAILSCANACTION", &config.Action)
	envString("env", "MAILSCANENVFILE", &config.EnvFile)
	envString("pfx", "MAILSCANPFX", &config.PfxPath)
	envString("pfxpass", "MAILSCANPFXPASS", &config.PfxPass)
	envString("user", "MAILSCANUSERS", &config.Users)
	envString("folder", "MAILSCANFOLDERS", &config.Folders)
	envString("from", "MAILSCANFROM", &config.Senders)
	envString("mindate", "MAILSCANMINDATE", &config.MinDate)
	envString("maxdate", "MAILSCANMAXDATE", &config.MaxDate)
	envString("sort", "MAILSCANSORT", &config.Sort)
	envString("api", "MAILSCANAPI", &config.API)
	envString("output", "MAILSCANOUTPUT", &config.Output)
	envString("csv", "MAILSCANCSV", &config.CSVPath)
	envString("tz", "MAILSCANTZ", &config.Timezone)
	envString("users", "MAILSCANUSERSFILE", &config.UsersFile)
	envString("domains", "MAILSCANDOMAINSFILE", &config.DomainsFile)
	envString("folderlist", "MAILSCANFOLDERSFILE", &config.FoldersFile)
	envString("loglevel", "MAILSCANLOGLEVEL", &config.LogLevel)

	if !providedFlags["count"] {
		if envCount := os.Getenv("MAILSCANCOUNT"); envCount != "" {
			if count, err := strconv.Atoi(envCount); err == nil && count >= 0 {
				config.Count = count
			}
		}
	}
	if !providedFlags["verbose"] {
		if envVerbose := os.Getenv("MAILSCANVERBOSE"); envVerbose != "" {
			config.VerboseMode = strings.EqualFold(envVerbose, "true") || envVerbose == "1"
		}
	}

	return config
}

// splitCSV splits a comma-separated flag value into trimmed non-empty parts.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// validateConfiguration validates the configuration and fills the derived
// fields. Everything here runs before any network call.
func validateConfiguration(config *Config) error {
	// Validate action
	validActions := map[string]bool{
		"scan":    true,
		"folders": true,
		"menu":    true,
	}
	action := strings.ToLower(config.Action)
	if !validActions[action] {
		return fmt.Errorf("invalid action: %s (valid: scan, folders, menu)", config.Action)
	}
	config.Action = action

	// Validate log level
	config.LogLevel = strings.ToLower(config.LogLevel)
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", config.LogLevel)
	}

	// Validate sort order
	config.Sort = strings.ToLower(config.Sort)
	if config.Sort != string(graph.OrderLatest) && config.Sort != string(graph.OrderEarliest) {
		return fmt.Errorf("invalid sort: %s (valid: latest, earliest)", config.Sort)
	}

	// Validate query style
	config.API = strings.ToLower(config.API)
	if config.API != string(graph.ModeSearch) && config.API != string(graph.ModeFilter) {
		return fmt.Errorf("invalid api: %s (valid: search, filter)", config.API)
	}

	// Validate output format
	config.Output = strings.ToLower(config.Output)
	if config.Output != "table" && config.Output != "json" {
		return fmt.Errorf("invalid output: %s (valid: table, json)", config.Output)
	}

	if config.Count < 0 {
		return fmt.Errorf("count must be >= 0 (0 fetches everything)")
	}

	// Display timezone
	config.Location = time.UTC
	if config.Timezone != "" {
		loc, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
		}
		config.Location = loc
	}

	// Credential file carries the app registration for every action
	if err := validation.ValidateFilePath(config.EnvFile, "env file"); err != nil {
		return err
	}
	if config.EnvFile == "" {
		return fmt.Errorf("env file is required")
	}
	if config.PfxPath != "" {
		if err := validation.ValidateFilePath(config.PfxPath, "pfx file"); err != nil {
			return err
		}
	}

	switch config.Action {
	case "menu":
		// Menu mode resolves users/senders/folders interactively; only the
		// mailbox list file is mandatory up front
		if err := validation.ValidateFilePath(config.UsersFile, "users file"); err != nil {
			return err
		}
		return nil

	case "folders":
		config.UserList = splitCSV(config.Users)
		if len(config.UserList) == 0 {
			return fmt.Errorf("user is required for the folders action")
		}
		return validation.ValidateEmails(config.UserList, "user")
	}

	// scan
	config.UserList = splitCSV(config.Users)
	if len(config.UserList) == 0 {
		return fmt.Errorf("user is required for the scan action")
	}
	if err := validation.ValidateEmails(config.UserList, "user"); err != nil {
		return err
	}

	config.FolderList = splitCSV(config.Folders)
	if len(config.FolderList) == 0 {
		config.FolderList = []string{"inbox"}
	}

	config.SenderList = splitCSV(config.Senders)
	if config.API == string(graph.ModeFilter) {
		// Filter mode matches exact addresses; bare domains only work with
		// the search syntax
		if err := validation.ValidateEmails(config.SenderList, "from"); err != nil {
			return fmt.Errorf("filter mode needs full sender addresses: %w", err)
		}
	}

	return validateDates(config)
}

// validateDates parses the date range, defaulting to the last 10 days.
func validateDates(config *Config) error {
	now := time.Now().UTC()
	if config.MinDate == "" {
		config.MinDate = now.AddDate(0, 0, -10).Format("2006-01-02")
	}
	if config.MaxDate == "" {
		config.MaxDate = now.Format("2006-01-02")
	}

	start, end, err := validation.ValidateDateRange(config.MinDate, config.MaxDate)
	if err != nil {
		return err
	}
	config.StartTime = start
	config.EndTime = end
	return nil
}
