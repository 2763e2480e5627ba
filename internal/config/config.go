// Package config defines bridge configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Layer file and env overrides on top via Load.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// ListenHost and ListenPort bind the launch monitor TCP listener.
	ListenHost string `koanf:"listen_host"`
	ListenPort int    `koanf:"listen_port"`

	// GameID is announced in the handshake greeting.
	GameID string `koanf:"game_id"`

	// SessionPolicy decides what happens when a second monitor connects
	// while a session is active: "reject" or "replace".
	SessionPolicy string `koanf:"session_policy"`

	// Session timing.
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	IdleInterval     time.Duration `koanf:"idle_interval"`
	IdleCloseTimeout time.Duration `koanf:"idle_close_timeout"`

	// QueueSize bounds the in-memory shot queue.
	QueueSize int `koanf:"queue_size"`

	// Display (OBS) connection.
	DisplayHost     string `koanf:"display_host"`
	DisplayPort     int    `koanf:"display_port"`
	DisplayPassword string `koanf:"display_password"`
	SourcePrefix    string `koanf:"source_prefix"`
	Scene           string `koanf:"scene"`

	// Presentation settings applied per shot.
	EnabledDataPoints []string `koanf:"enabled_data_points"`
	UnitSystem        string   `koanf:"unit_system"` // imperial or metric
	ShowLabels        bool     `koanf:"show_labels"`
	ShowUnits         bool     `koanf:"show_units"`
	Placeholder       string   `koanf:"placeholder"`

	// Enrichment calculator endpoint.
	CalculatorHost    string        `koanf:"calculator_host"`
	CalculatorPort    int           `koanf:"calculator_port"`
	CalculatorTimeout time.Duration `koanf:"calculator_timeout"`

	// StatusAddr serves health, metrics, and the shot history API.
	StatusAddr string `koanf:"status_addr"`

	// Shot history persistence. Empty path disables history.
	HistoryPath  string `koanf:"history_path"`
	HistoryLimit int    `koanf:"history_limit"`

	// Optional NATS fanout. Empty URL disables broadcasting.
	NATSURL     string `koanf:"nats_url"`
	NATSSubject string `koanf:"nats_subject"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		ListenHost:        "0.0.0.0",
		ListenPort:        921,
		GameID:            "OpenGolfCoach",
		SessionPolicy:     "reject",
		HandshakeTimeout:  10 * time.Second,
		IdleInterval:      30 * time.Second,
		IdleCloseTimeout:  60 * time.Second,
		QueueSize:         64,
		DisplayHost:       "localhost",
		DisplayPort:       4455,
		SourcePrefix:      "OGC_",
		UnitSystem:        "imperial",
		ShowLabels:        true,
		ShowUnits:         true,
		Placeholder:       "--",
		CalculatorHost:    "localhost",
		CalculatorPort:    9210,
		CalculatorTimeout: 5 * time.Second,
		StatusAddr:        ":9080",
		HistoryLimit:      500,
		NATSSubject:       "ogc.shots",
	}
}
