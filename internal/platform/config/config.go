package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration for the archival subsystem.
// Everything is explicit and passed down; nothing reads the environment after
// startup.
type Config struct {
	// ArchiveRoot is the absolute base directory for persisted artifacts.
	ArchiveRoot string
	// DatabaseURL selects the backing database. postgres:// URLs use lib/pq,
	// anything else is treated as a sqlite DSN.
	DatabaseURL string

	// CorruptionFloorBytes is the minimum plausible artifact size. Files below
	// it are treated as structurally corrupt at serve time. This is a
	// heuristic: a legitimately tiny report is indistinguishable from a
	// truncated one under this rule.
	CorruptionFloorBytes int64

	// OrphanGrace is how old an unrecorded file must be before the orphan
	// sweep reports it.
	OrphanGrace time.Duration

	// SentinelInterval is the sleep between monitor cycles.
	SentinelInterval time.Duration
	// OpsAddr is the listen address for /healthz and /metrics.
	OpsAddr string

	// ComplianceReportDir receives the markdown report written by the
	// reconcile CLI.
	ComplianceReportDir string

	Redis RedisConfig
	SMTP  SMTPConfig
}

// RedisConfig configures the optional artifact path cache.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SMTPConfig configures the administrator alert channel.
type SMTPConfig struct {
	Host        string
	Port        int
	User        string
	Pass        string
	From        string
	AdminEmails []string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		ArchiveRoot:          envOr("REPORTVAULT_ARCHIVE_ROOT", "/var/lib/reportvault/archives"),
		DatabaseURL:          envOr("REPORTVAULT_DATABASE_URL", "file:reportvault.db?_fk=1"),
		CorruptionFloorBytes: envInt64("REPORTVAULT_CORRUPTION_FLOOR_BYTES", 2000),
		OrphanGrace:          envDuration("REPORTVAULT_ORPHAN_GRACE", 24*time.Hour),
		SentinelInterval:     envDuration("REPORTVAULT_SENTINEL_INTERVAL", time.Hour),
		OpsAddr:              envOr("REPORTVAULT_OPS_ADDR", ":9090"),
		ComplianceReportDir:  envOr("REPORTVAULT_COMPLIANCE_REPORT_DIR", "."),
		Redis: RedisConfig{
			URL:          os.Getenv("REPORTVAULT_REDIS_URL"),
			DialTimeout:  envDuration("REPORTVAULT_REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  envDuration("REPORTVAULT_REDIS_READ_TIMEOUT", time.Second),
			WriteTimeout: envDuration("REPORTVAULT_REDIS_WRITE_TIMEOUT", time.Second),
		},
		SMTP: SMTPConfig{
			Host:        os.Getenv("REPORTVAULT_SMTP_HOST"),
			Port:        int(envInt64("REPORTVAULT_SMTP_PORT", 587)),
			User:        os.Getenv("REPORTVAULT_SMTP_USER"),
			Pass:        os.Getenv("REPORTVAULT_SMTP_PASS"),
			From:        envOr("REPORTVAULT_SMTP_FROM", "sentinel@reportvault.local"),
			AdminEmails: splitNonEmpty(os.Getenv("REPORTVAULT_ADMIN_EMAILS")),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
