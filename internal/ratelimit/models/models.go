package models

import (
	"fmt"
	"time"
)

type EndpointClass string

const (
	// ClassLogin: voice login, the brute-force surface (POST /voice/login)
	ClassLogin EndpointClass = "login"
	// ClassEnroll: voice enrollment (POST /voice/enroll)
	ClassEnroll EndpointClass = "enroll"
	// ClassSession: refresh, logout and account endpoints
	ClassSession EndpointClass = "session"
)

func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassLogin, ClassEnroll, ClassSession:
		return true
	}
	return false
}

// Limit is a sliding window budget for one endpoint class.
type Limit struct {
	Requests int
	Window   time.Duration
}

// RateLimitResult describes one consume attempt against a bucket.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds.
func RetryAfterSeconds(allowed bool, resetAt, now time.Time) int {
	if allowed {
		return 0
	}
	wait := resetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return int((wait + time.Second - 1) / time.Second)
}

// IPKey is the bucket key for one client address within a class.
func IPKey(class EndpointClass, ip string) string {
	return fmt.Sprintf("ip:%s:%s", class, ip)
}

type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"error_description"`
	RetryAfter int    `json:"retry_after"`
}
