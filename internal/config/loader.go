package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Call join policies accepted by VISITORDESK_CALL_JOIN_POLICY.
const (
	CallJoinApproved = "approved"
	CallJoinOpen     = "open"
)

// Config captures environment driven configuration values for the visitor desk client.
type Config struct {
	APIBaseURL               string
	APITimeout               time.Duration
	CheckInBaseURL           string
	SQLiteDSN                string
	SessionSecret            string
	KioskPort                int
	LogLevel                 slog.Level
	ForceLogoutOnAuthFailure bool
	CallJoinPolicy           string
	Location                 *time.Location
	ScanRatePerMinute        int

	Groq    GroqConfig
	EmailJS EmailJSConfig
}

// GroqConfig holds settings for the chat completion backend.
type GroqConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// EmailJSConfig holds settings for visitor notification emails.
type EmailJSConfig struct {
	ServiceID            string
	PublicKey            string
	ApprovalTemplate     string
	RejectionTemplate    string
	PreApprovalTemplate  string
	RegistrationTemplate string
}

// Enabled reports whether enough settings exist to send notifications.
func (c EmailJSConfig) Enabled() bool {
	return c.ServiceID != "" && c.PublicKey != ""
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults. Required values that are missing and
// values that fail to parse are reported together.
func Load() (Config, error) {
	cfg := Config{
		APIBaseURL:               "http://localhost:5000/api",
		APITimeout:               30 * time.Second,
		SQLiteDSN:                "file:visitordesk.db?_pragma=foreign_keys(1)",
		KioskPort:                8090,
		LogLevel:                 slog.LevelInfo,
		ForceLogoutOnAuthFailure: true,
		CallJoinPolicy:           CallJoinApproved,
		Location:                 time.Local,
		ScanRatePerMinute:        30,
		Groq: GroqConfig{
			Model:   "llama3-8b-8192",
			BaseURL: "https://api.groq.com/openai/v1",
		},
		EmailJS: EmailJSConfig{
			ApprovalTemplate:     "APPROVAL_TEMPLATE",
			RejectionTemplate:    "REJECTION_TEMPLATE",
			PreApprovalTemplate:  "PREAPPROVAL_TEMPLATE",
			RegistrationTemplate: "REGISTRATION_TEMPLATE",
		},
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	if base := strings.TrimSpace(os.Getenv("VISITORDESK_API_BASE_URL")); base != "" {
		if !validBaseURL(base) {
			invalid = append(invalid, "VISITORDESK_API_BASE_URL")
		} else {
			cfg.APIBaseURL = strings.TrimRight(base, "/")
		}
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("VISITORDESK_API_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "VISITORDESK_API_TIMEOUT")
		} else {
			cfg.APITimeout = timeout
		}
	}

	if base := strings.TrimSpace(os.Getenv("VISITORDESK_CHECKIN_BASE_URL")); base != "" {
		if !validBaseURL(base) {
			invalid = append(invalid, "VISITORDESK_CHECKIN_BASE_URL")
		} else {
			cfg.CheckInBaseURL = strings.TrimRight(base, "/")
		}
	}
	if cfg.CheckInBaseURL == "" {
		cfg.CheckInBaseURL = cfg.APIBaseURL
	}

	if dsn := strings.TrimSpace(os.Getenv("VISITORDESK_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("VISITORDESK_SESSION_SECRET")); secret == "" {
		missing = append(missing, "VISITORDESK_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	if portValue := strings.TrimSpace(os.Getenv("VISITORDESK_KIOSK_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "VISITORDESK_KIOSK_PORT")
		} else {
			cfg.KioskPort = port
		}
	}

	if levelValue := strings.TrimSpace(os.Getenv("VISITORDESK_LOG_LEVEL")); levelValue != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(levelValue)); err != nil {
			invalid = append(invalid, "VISITORDESK_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	if forceValue := strings.TrimSpace(os.Getenv("VISITORDESK_FORCE_LOGOUT_ON_AUTH_FAILURE")); forceValue != "" {
		force, err := strconv.ParseBool(forceValue)
		if err != nil {
			invalid = append(invalid, "VISITORDESK_FORCE_LOGOUT_ON_AUTH_FAILURE")
		} else {
			cfg.ForceLogoutOnAuthFailure = force
		}
	}

	if policy := strings.ToLower(strings.TrimSpace(os.Getenv("VISITORDESK_CALL_JOIN_POLICY"))); policy != "" {
		switch policy {
		case CallJoinApproved, CallJoinOpen:
			cfg.CallJoinPolicy = policy
		default:
			invalid = append(invalid, "VISITORDESK_CALL_JOIN_POLICY")
		}
	}

	if zone := strings.TrimSpace(os.Getenv("VISITORDESK_TIMEZONE")); zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			invalid = append(invalid, "VISITORDESK_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if rateValue := strings.TrimSpace(os.Getenv("VISITORDESK_SCAN_RATE_PER_MINUTE")); rateValue != "" {
		rate, err := strconv.Atoi(rateValue)
		if err != nil || rate <= 0 {
			invalid = append(invalid, "VISITORDESK_SCAN_RATE_PER_MINUTE")
		} else {
			cfg.ScanRatePerMinute = rate
		}
	}

	cfg.Groq.APIKey = strings.TrimSpace(os.Getenv("VISITORDESK_GROQ_API_KEY"))
	if model := strings.TrimSpace(os.Getenv("VISITORDESK_GROQ_MODEL")); model != "" {
		cfg.Groq.Model = model
	}
	if base := strings.TrimSpace(os.Getenv("VISITORDESK_GROQ_BASE_URL")); base != "" {
		if !validBaseURL(base) {
			invalid = append(invalid, "VISITORDESK_GROQ_BASE_URL")
		} else {
			cfg.Groq.BaseURL = strings.TrimRight(base, "/")
		}
	}

	cfg.EmailJS.ServiceID = strings.TrimSpace(os.Getenv("VISITORDESK_EMAILJS_SERVICE_ID"))
	cfg.EmailJS.PublicKey = strings.TrimSpace(os.Getenv("VISITORDESK_EMAILJS_PUBLIC_KEY"))
	if tpl := strings.TrimSpace(os.Getenv("VISITORDESK_EMAILJS_APPROVAL_TEMPLATE")); tpl != "" {
		cfg.EmailJS.ApprovalTemplate = tpl
	}
	if tpl := strings.TrimSpace(os.Getenv("VISITORDESK_EMAILJS_REJECTION_TEMPLATE")); tpl != "" {
		cfg.EmailJS.RejectionTemplate = tpl
	}
	if tpl := strings.TrimSpace(os.Getenv("VISITORDESK_EMAILJS_PREAPPROVAL_TEMPLATE")); tpl != "" {
		cfg.EmailJS.PreApprovalTemplate = tpl
	}
	if tpl := strings.TrimSpace(os.Getenv("VISITORDESK_EMAILJS_REGISTRATION_TEMPLATE")); tpl != "" {
		cfg.EmailJS.RegistrationTemplate = tpl
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func validBaseURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
