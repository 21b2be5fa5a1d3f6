package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port          int
	JWTSecret     string
	DatabaseURL   string
	EncryptionKey string
	CORSOrigins   []string

	// Converge gateway settings. Credentials are injected into the gateway
	// client at startup; nothing reads them from the environment at call time.
	ConvergeMerchantID string
	ConvergeUserID     string
	ConvergePIN        string
	ConvergeAPIURL     string
	ConvergeHostedURL  string

	// StrictCallbackMatch disables the oldest-pending fallback when a
	// checkout callback carries no usable invoice number.
	StrictCallbackMatch bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, _ := strconv.Atoi(getEnv("PORT", "4002"))

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	encKey := getEnv("ENCRYPTION_KEY", "")
	if encKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required (must be exactly 32 bytes)")
	}
	if len(encKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(encKey))
	}

	merchantID := getEnv("CONVERGE_MERCHANT_ID", "")
	userID := getEnv("CONVERGE_USER_ID", "")
	pin := getEnv("CONVERGE_PIN", "")
	if merchantID == "" || userID == "" || pin == "" {
		return nil, fmt.Errorf("CONVERGE_MERCHANT_ID, CONVERGE_USER_ID and CONVERGE_PIN are required")
	}

	origins := strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,https://app.prow.io"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:                port,
		JWTSecret:           jwtSecret,
		DatabaseURL:         dbURL,
		EncryptionKey:       encKey,
		CORSOrigins:         origins,
		ConvergeMerchantID:  merchantID,
		ConvergeUserID:      userID,
		ConvergePIN:         pin,
		// process.do is the ASCII key=value endpoint; processxml.do speaks XML,
		// which the client does not.
		ConvergeAPIURL:      getEnv("CONVERGE_API_URL", "https://api.convergepay.com/VirtualMerchant/process.do"),
		ConvergeHostedURL:   getEnv("CONVERGE_HOSTED_URL", "https://api.convergepay.com/hosted-payments"),
		StrictCallbackMatch: getEnv("STRICT_CALLBACK_MATCH", "") == "true",
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
