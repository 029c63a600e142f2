package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL    string
	LogLevel       string
	Debug          bool
	ServiceName    string
	Environment    string
	ServerPort     string
	WorkerCount    int
	AllowedOrigins []string

	// WhatsApp defaults used to seed a tenant binding when the
	// tenant_numbers table is empty (single-tenant development setup).
	WhatsAppVerifyToken   string
	WhatsAppAccessToken   string
	WhatsAppPhoneID       string
	WhatsAppDisplayNumber string

	// LeadFlowPhoneID is the one tenant number the lead-to-appointment
	// flow is allowed to engage on.
	LeadFlowPhoneID string

	SessionTTL     time.Duration
	SweepSchedule  string
	TenantCacheTTL time.Duration
	DedupWindow    time.Duration

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	ZohoClientID     string
	ZohoClientSecret string
	ZohoRefreshToken string
	ZohoAccountsURL  string
	ZohoAPIBaseURL   string

	ShopifyStoreDomain string
	ShopifyAccessToken string
}

func LoadConfig() (*Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	serviceName := os.Getenv("SERVICE_NAME")
	if serviceName == "" {
		serviceName = "wb-crm"
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	workerCount := 10
	if wc := os.Getenv("WORKER_COUNT"); wc != "" {
		if parsed, err := strconv.Atoi(wc); err == nil {
			workerCount = parsed
		}
	}

	allowedOrigins := []string{"*"}
	if ao := os.Getenv("ALLOWED_ORIGINS"); ao != "" {
		allowedOrigins = splitAndTrim(ao)
	}

	sessionTTL := 30 * time.Minute
	if v := os.Getenv("SESSION_TTL_MINUTES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			sessionTTL = time.Duration(parsed) * time.Minute
		}
	}

	sweepSchedule := os.Getenv("SESSION_SWEEP_SCHEDULE")
	if sweepSchedule == "" {
		sweepSchedule = "@every 1m"
	}

	tenantCacheTTL := 5 * time.Minute
	if v := os.Getenv("TENANT_CACHE_TTL_MINUTES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			tenantCacheTTL = time.Duration(parsed) * time.Minute
		}
	}

	dedupWindow := 10 * time.Minute
	if v := os.Getenv("DEDUP_WINDOW_MINUTES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			dedupWindow = time.Duration(parsed) * time.Minute
		}
	}

	zohoAccountsURL := os.Getenv("ZOHO_ACCOUNTS_URL")
	if zohoAccountsURL == "" {
		zohoAccountsURL = "https://accounts.zoho.in"
	}
	zohoAPIBaseURL := os.Getenv("ZOHO_API_BASE_URL")
	if zohoAPIBaseURL == "" {
		zohoAPIBaseURL = "https://www.zohoapis.in/crm/v2"
	}

	return &Config{
		DatabaseURL:    databaseURL,
		LogLevel:       logLevel,
		Debug:          os.Getenv("DEBUG") == "true",
		ServiceName:    serviceName,
		Environment:    environment,
		ServerPort:     serverPort,
		WorkerCount:    workerCount,
		AllowedOrigins: allowedOrigins,

		WhatsAppVerifyToken:   getenvDefault("WHATSAPP_VERIFY_TOKEN", "default_verify_token"),
		WhatsAppAccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		WhatsAppPhoneID:       os.Getenv("WHATSAPP_PHONE_ID"),
		WhatsAppDisplayNumber: os.Getenv("WHATSAPP_DISPLAY_NUMBER"),
		LeadFlowPhoneID:       os.Getenv("LEAD_FLOW_PHONE_ID"),

		SessionTTL:     sessionTTL,
		SweepSchedule:  sweepSchedule,
		TenantCacheTTL: tenantCacheTTL,
		DedupWindow:    dedupWindow,

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),

		ZohoClientID:     os.Getenv("ZOHO_CLIENT_ID"),
		ZohoClientSecret: os.Getenv("ZOHO_CLIENT_SECRET"),
		ZohoRefreshToken: os.Getenv("ZOHO_REFRESH_TOKEN"),
		ZohoAccountsURL:  zohoAccountsURL,
		ZohoAPIBaseURL:   zohoAPIBaseURL,

		ShopifyStoreDomain: os.Getenv("SHOPIFY_STORE_DOMAIN"),
		ShopifyAccessToken: os.Getenv("SHOPIFY_ACCESS_TOKEN"),
	}, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
