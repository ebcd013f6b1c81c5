package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// newTestConfig returns a valid scan Config for testing, backed by a real
// temp credential file so the file checks pass.
func newTestConfig(t *testing.T) *Config {
	t.Helper()
	envPath := filepath.Join(t.TempDir(), ".env")
	content := "TENANT_ID=11111111-2222-3333-4444-555555555555\n" +
		"CLIENT_ID=66666666-7777-8888-9999-000000000000\n" +
		"CLIENT_SECRET=s3cret\n"
	if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write temp env file: %v", err)
	}

	return &Config{
		Action:   "scan",
		EnvFile:  envPath,
		Users:    "a@example.com",
		Folders:  "inbox",
		MinDate:  "2024-01-01",
		MaxDate:  "2024-01-31",
		Sort:     "latest",
		API:      "search",
		Output:   "table",
		LogLevel: "info",
	}
}

func TestNewConfig(t *testing.T) {
	config := NewConfig()

	if config.EnvFile != ".env" {
		t.Errorf("NewConfig() EnvFile = %s, want .env", config.EnvFile)
	}
	if config.Folders != "inbox" {
		t.Errorf("NewConfig() Folders = %s, want inbox", config.Folders)
	}
	if config.Sort != "latest" {
		t.Errorf("NewConfig() Sort = %s, want latest", config.Sort)
	}
	if config.API != "search" {
		t.Errorf("NewConfig() API = %s, want search", config.API)
	}
	if config.Output != "table" {
		t.Errorf("NewConfig() Output = %s, want table", config.Output)
	}
	if config.LogLevel != "info" {
		t.Errorf("NewConfig() LogLevel = %s, want info", config.LogLevel)
	}
}

func TestValidateConfiguration_Action(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		wantErr bool
	}{
		{"valid scan", "scan", false},
		{"valid folders", "folders", false},
		{"uppercase SCAN", "SCAN", false}, // Should be normalized
		{"invalid action", "deletemail", true},
		{"empty action", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := newTestConfig(t)
			config.Action = tt.action
			err := validateConfiguration(config)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfiguration() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfiguration_Users(t *testing.T) {
	tests := []struct {
		name     string
		users    string
		wantErr  bool
		wantList []string
	}{
		{"single user", "a@example.com", false, []string{"a@example.com"}},
		{"multiple users", "a@example.com,b@example.com", false, []string{"a@example.com", "b@example.com"}},
		{"spaces around commas", " a@example.com , b@example.com ", false, []string{"a@example.com", "b@example.com"}},
		{"missing users", "", true, nil},
		{"not an email", "not-an-address", true, nil},
		{"one bad among good", "a@example.com,nope", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := newTestConfig(t)
			config.Users = tt.users
			err := validateConfiguration(config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateConfiguration() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(config.UserList, tt.wantList) {
				t.Errorf("UserList = %v, want %v", config.UserList, tt.wantList)
			}
		})
	}
}

func TestValidateConfiguration_SortAPIOutput(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"sort latest", func(c *Config) { c.Sort = "latest" }, false},
		{"sort earliest", func(c *Config) { c.Sort = "earliest" }, false},
		{"sort uppercase", func(c *Config) { c.Sort = "EARLIEST" }, false},
		{"sort invalid", func(c *Config) { c.Sort = "newest" }, true},
		{"api search", func(c *Config) { c.API = "search" }, false},
		{"api filter", func(c *Config) { c.API = "filter"; c.Senders = "a@acme.com" }, false},
		{"api invalid", func(c *Config) { c.API = "graphql" }, true},
		{"output table", func(c *Config) { c.Output = "table" }, false},
		{"output json", func(c *Config) { c.Output = "json" }, false},
		{"output invalid", func(c *Config) { c.Output = "xml" }, true},
		{"negative count", func(c *Config) { c.Count = -1 }, true},
		{"zero count", func(c *Config) { c.Count = 0 }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := newTestConfig(t)
			tt.mutate(config)
			err := validateConfiguration(config)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfiguration() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfiguration_FilterModeSenders(t *testing.T) {
	tests := []struct {
		name    string
		api     string
		senders string
		wantErr bool
	}{
		{"search accepts bare domains", "search", "acme.com,corp.com", false},
		{"filter accepts full addresses", "filter", "alerts@acme.com", false},
		{"filter rejects bare domains", "filter", "acme.com", true},
		{"filter with no senders", "filter", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := newTestConfig(t)
			config.API = tt.api
			config.Senders = tt.senders
			err := validateConfiguration(config)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfiguration() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfiguration_Dates(t *testing.T) {
	tests := []struct {
		name    string
		min     string
		max     string
		wantErr bool
	}{
		{"explicit range", "2024-01-01", "2024-01-31", false},
		{"defaults applied when empty", "", "", false},
		{"reversed range", "2024-02-01", "2024-01-01", true},
		{"malformed date", "01/01/2024", "2024-01-31", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := newTestConfig(t)
			config.MinDate = tt.min
			config.MaxDate = tt.max
			err := validateConfiguration(config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateConfiguration() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if config.StartTime.IsZero() || config.EndTime.IsZero() {
				t.Error("validateConfiguration() did not fill the parsed date bounds")
			}
			if config.StartTime.After(config.EndTime) {
				t.Errorf("StartTime %v after EndTime %v", config.StartTime, config.EndTime)
			}
		})
	}
}

func TestValidateConfiguration_DateDefaults(t *testing.T) {
	config := newTestConfig(t)
	config.MinDate = ""
	config.MaxDate = ""
	if err := validateConfiguration(config); err != nil {
		t.Fatalf("validateConfiguration() error = %v", err)
	}

	wantStart := time.Now().UTC().AddDate(0, 0, -10).Format("2006-01-02")
	if config.MinDate != wantStart {
		t.Errorf("default MinDate = %s, want %s (10 days back)", config.MinDate, wantStart)
	}
}

func TestValidateConfiguration_Timezone(t *testing.T) {
	config := newTestConfig(t)
	config.Timezone = "Not/AZone"
	if err := validateConfiguration(config); err == nil {
		t.Error("validateConfiguration() accepted an unknown timezone")
	}

	config = newTestConfig(t)
	config.Timezone = ""
	if err := validateConfiguration(config); err != nil {
		t.Fatalf("validateConfiguration() error = %v", err)
	}
	if config.Location != time.UTC {
		t.Errorf("default Location = %v, want UTC", config.Location)
	}
}

func TestValidateConfiguration_EnvFile(t *testing.T) {
	config := newTestConfig(t)
	config.EnvFile = filepath.Join(t.TempDir(), "missing.env")
	if err := validateConfiguration(config); err == nil {
		t.Error("validateConfiguration() accepted a missing env file")
	}
}

func TestValidateConfiguration_FolderDefault(t *testing.T) {
	config := newTestConfig(t)
	config.Folders = " , "
	if err := validateConfiguration(config); err != nil {
		t.Fatalf("validateConfiguration() error = %v", err)
	}
	if !reflect.DeepEqual(config.FolderList, []string{"inbox"}) {
		t.Errorf("FolderList = %v, want [inbox]", config.FolderList)
	}
}

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ", []string{"a", "b"}},
		{"a,,b", []string{"a", "b"}},
		{"", nil},
		{" , ", nil},
		{"single", []string{"single"}},
	}

	for _, tt := range tests {
		if got := splitCSV(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitCSV(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
