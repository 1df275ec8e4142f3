package config

import (
	"strings"
)

// SecurityConfig holds request throttling and CORS configuration
type SecurityConfig struct {
	// Rate limiting, per client IP
	IPRateLimit float64
	IPRateBurst int
	// Minutes before an idle IP limiter is dropped
	RateLimitCleanupMin int

	CORSAllowedOrigins []string
}

// DefaultSecurityConfig returns the default security configuration
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		// 10 requests per second per IP with bursts of 20
		IPRateLimit:         10,
		IPRateBurst:         20,
		RateLimitCleanupMin: 5,
		CORSAllowedOrigins:  []string{"http://localhost:3000"},
	}
}

// LoadSecurityConfig overrides the defaults from the environment
func LoadSecurityConfig() SecurityConfig {
	cfg := DefaultSecurityConfig()
	cfg.IPRateLimit = float64(getEnvInt("RATE_LIMIT_RPS", int(cfg.IPRateLimit)))
	cfg.IPRateBurst = getEnvInt("RATE_LIMIT_BURST", cfg.IPRateBurst)
	cfg.RateLimitCleanupMin = getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", cfg.RateLimitCleanupMin)

	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.CORSAllowedOrigins = nil
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}
	return cfg
}
