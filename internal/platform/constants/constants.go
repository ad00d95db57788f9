// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: JWT issuer and access token lifetime.
  - Storage: schema, collection and lock key names.

Account lifecycle limits (lockout threshold, resend caps) are owned by the
packages that enforce them, not by this file.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "facultyeval-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second

	// NotificationTimeout bounds a single outbound email. Delivery is detached
	// from the request context so a slow SMTP server never holds a response.
	NotificationTimeout = 15 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// AuthRateLimitRPS throttles the credential endpoints (login, verify, resend).
	AuthRateLimitRPS = 2.0

	// AuthRateLimitBurst is the burst allowance on the credential endpoints.
	AuthRateLimitBurst = 10

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "facultyeval.app"

	// AccessTokenTTL is the lifetime of the access token returned by login.
	AccessTokenTTL = 1 * time.Hour
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderAuthorization = "Authorization"
	HeaderRetryAfter    = "Retry-After"
)

// # JSON Field Identifiers

const (
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

// # Storage Names

const (
	// CollectionAccounts is the MongoDB collection for every account role.
	CollectionAccounts = "accounts"

	// CollectionVerifications is the MongoDB collection for verification records.
	CollectionVerifications = "verifications"
)

// # Lock Keys

const (
	// LockPrefixResend serializes concurrent resend requests for one email.
	LockPrefixResend = "facultyeval:lock:resend:"

	// ResendLockTTL bounds how long a crashed request can hold the resend lock.
	ResendLockTTL = 10 * time.Second
)
