package config

import (
    "os"
    "strconv"
    "time"
)

// RateLimitConfig drives a Redis token bucket.  With the code-issuing
// defaults a client may request three codes back to back and then one
// more per minute.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

// LoadRateLimitConfig reads the bucket for code issuing (OTP_RATE_LIMIT_*).
func LoadRateLimitConfig() RateLimitConfig {
    return loadRateLimit("OTP_RATE_LIMIT", RateLimitConfig{
        Enabled:        true,
        Capacity:       3,
        RefillTokens:   1,
        RefillInterval: time.Minute,
        TTL:            15 * time.Minute,
        KeyStrategy:    "ip_route",
        Prefix:         "rl:otp",
    })
}

// LoadVerifyRateLimitConfig reads the bucket for code and answer checks
// (VERIFY_RATE_LIMIT_*).  It bounds guessing: with the defaults a client
// gets about twenty tries over a code's ten minute life.
func LoadVerifyRateLimitConfig() RateLimitConfig {
    return loadRateLimit("VERIFY_RATE_LIMIT", RateLimitConfig{
        Enabled:        true,
        Capacity:       10,
        RefillTokens:   1,
        RefillInterval: time.Minute,
        TTL:            30 * time.Minute,
        KeyStrategy:    "ip_route",
        Prefix:         "rl:verify",
    })
}

func loadRateLimit(env string, def RateLimitConfig) RateLimitConfig {
    c := RateLimitConfig{
        Enabled:        envBool(env+"_ENABLED", def.Enabled),
        Capacity:       envInt(env+"_CAPACITY", def.Capacity),
        RefillTokens:   envInt(env+"_REFILL_TOKENS", def.RefillTokens),
        RefillInterval: envDur(env+"_REFILL_INTERVAL", def.RefillInterval),
        TTL:            envDur(env+"_TTL", def.TTL),
        KeyStrategy:    envStr(env+"_KEY_STRATEGY", def.KeyStrategy),
        Prefix:         envStr(env+"_PREFIX", def.Prefix),
        Debug:          envBool(env+"_DEBUG", false),
    }
    return c.normalize()
}

func (c RateLimitConfig) normalize() RateLimitConfig {
    if c.Capacity < 1 { c.Capacity = 1 }
    if c.RefillTokens < 1 { c.RefillTokens = 1 }
    if c.RefillInterval <= 0 { c.RefillInterval = time.Second }
    minTTL := 5 * c.RefillInterval
    if c.TTL < minTTL { c.TTL = minTTL }
    return c
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    switch v {
    case "1","true","TRUE","True","yes","YES","on","ON": return true
    case "0","false","FALSE","False","no","NO","off","OFF": return false
    }
    return d
}
func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
