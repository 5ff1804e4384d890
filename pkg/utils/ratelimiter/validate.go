package ratelimiter

import "regexp"

// ValidateRateLimiter the request rate, format: N/s or N/m
func ValidateRateLimiter(rateLimiter string) bool {
	if rateLimiter == "" {
		return false
	}
	if isMatch, _ := regexp.MatchString("^[[:digit:]]+/[sm]$", rateLimiter); !isMatch {
		return false
	}
	return true
}
