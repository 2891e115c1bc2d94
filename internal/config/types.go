package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the root of the famplan config file (YAML or JSON).
//
// All durations are Go duration strings (e.g. "30s", "1m").
type Config struct {
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Push     PushConfig     `json:"push"`
	Reminder ReminderConfig `json:"reminder"`
	Family   FamilyConfig   `json:"family"`
}

// ServerConfig controls the HTTP API.
//
// TriggerToken protects POST /api/reminders/run. An empty token disables
// the check (permissive default for single-host installs behind a proxy).
type ServerConfig struct {
	Addr         string   `json:"addr,omitempty"`
	TriggerToken string   `json:"trigger_token,omitempty"`
	CORSOrigins  []string `json:"cors_origins,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// PushConfig carries the VAPID application credentials for Web Push.
//
// If the key pair is missing, the transport stays unconfigured and every
// send reports that instead of attempting network I/O.
type PushConfig struct {
	VAPIDPublicKey  string `json:"vapid_public_key,omitempty"`
	VAPIDPrivateKey string `json:"vapid_private_key,omitempty"`
	Subject         string `json:"subject,omitempty"` // mailto: or https: contact
	TTLSeconds      int    `json:"ttl_seconds,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
}

// ReminderConfig controls the sweep.
//
// Enabled turns the internal periodic trigger on; the HTTP trigger works
// either way. Interval is how often the internal trigger sweeps.
type ReminderConfig struct {
	Enabled              bool   `json:"enabled"`
	Interval             string `json:"interval,omitempty"`
	Timezone             string `json:"timezone,omitempty"`
	ForwardWindowMinutes int    `json:"forward_window_minutes,omitempty"`
	LeadMinutes          []int  `json:"lead_minutes,omitempty"`
	DefaultLeadMinutes   int    `json:"default_lead_minutes,omitempty"`

	// NotifiedPrefilter skips tasks whose notified flag is already set
	// before any window math. Cheaper, but the first delivered recipient
	// silences the task for everyone else; the per-endpoint dispatch
	// record remains the correctness gate either way.
	NotifiedPrefilter bool `json:"notified_prefilter"`
}

// FamilyConfig is the closed roster of recognized people.
type FamilyConfig struct {
	Children []string `json:"children,omitempty"`
	Parents  []string `json:"parents,omitempty"`

	// ParentEmptyWatchReceivesAll decides what a parent subscription with
	// neither receive_all nor a watch list gets: everything (true) or
	// nothing (false). Earlier deployments disagreed; the default is the
	// conservative reading.
	ParentEmptyWatchReceivesAll bool `json:"parent_empty_watch_receives_all"`
}

// ---- Defaults & validation ----

const (
	DefaultAddr                 = "127.0.0.1:8970"
	DefaultStoragePath          = "./famplan.db"
	DefaultSweepInterval        = time.Minute
	DefaultForwardWindowMinutes = 15
	DefaultLeadMinutes          = 15
	DefaultPushTTLSeconds       = 300
	DefaultPushRatePerSec       = 10
)

// DefaultLeadChoices is the allowed lead-time enumeration in minutes.
var DefaultLeadChoices = []int{5, 10, 15, 30, 60}

// Normalize fills zero values with defaults. It mutates the receiver.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = DefaultAddr
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = DefaultStoragePath
	}
	if strings.TrimSpace(c.Reminder.Interval) == "" {
		c.Reminder.Interval = DefaultSweepInterval.String()
	}
	if c.Reminder.ForwardWindowMinutes <= 0 {
		c.Reminder.ForwardWindowMinutes = DefaultForwardWindowMinutes
	}
	if len(c.Reminder.LeadMinutes) == 0 {
		c.Reminder.LeadMinutes = append([]int(nil), DefaultLeadChoices...)
	}
	if c.Reminder.DefaultLeadMinutes <= 0 {
		c.Reminder.DefaultLeadMinutes = DefaultLeadMinutes
	}
	if c.Push.TTLSeconds <= 0 {
		c.Push.TTLSeconds = DefaultPushTTLSeconds
	}
	if c.Push.RatePerSec <= 0 {
		c.Push.RatePerSec = DefaultPushRatePerSec
	}
}

// Validate rejects configs that cannot be acted on. It assumes
// Normalize has already run.
func (c *Config) Validate() error {
	if _, err := ParseDurationField("reminder.interval", c.Reminder.Interval); err != nil {
		return err
	}
	if tz := strings.TrimSpace(c.Reminder.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("reminder.timezone: %w", err)
		}
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	for _, l := range c.Reminder.LeadMinutes {
		if l <= 0 {
			return errors.New("reminder.lead_minutes: values must be > 0")
		}
	}
	seen := map[string]bool{}
	for _, n := range append(append([]string(nil), c.Family.Children...), c.Family.Parents...) {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" {
			return errors.New("family: person names must be non-empty")
		}
		if seen[key] {
			return fmt.Errorf("family: duplicate person %q", n)
		}
		seen[key] = true
	}
	return nil
}

// SweepInterval returns the parsed internal-trigger interval.
func (c *Config) SweepInterval() time.Duration {
	d, err := ParseDurationOrDefault("reminder.interval", c.Reminder.Interval, DefaultSweepInterval)
	if err != nil || d <= 0 {
		return DefaultSweepInterval
	}
	return d
}
