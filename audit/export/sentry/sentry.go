// Package sentry forwards high-severity security events to Sentry.
//
// The sink implements [shopauth.SecuritySink]. Events below the configured
// minimum severity are dropped locally; everything else becomes a Sentry
// message event tagged with the security event type and subject.
package sentry

import (
	"context"
	"time"

	sentrygo "github.com/getsentry/sentry-go"

	shopauth "github.com/solmarkt/shopauth"
)

// Config defines a public type used by shopauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	DSN         string
	Environment string

	// MinSeverity is the lowest severity that is forwarded. Zero value
	// forwards SeverityHigh and above.
	MinSeverity shopauth.Severity
}

// Sink is a [shopauth.SecuritySink] backed by a Sentry hub.
type Sink struct {
	hub *sentrygo.Hub
	min shopauth.Severity
}

// New initializes a dedicated Sentry client for security events. An empty
// DSN yields a sink that drops everything, so callers can wire it
// unconditionally.
func New(cfg Config) (*Sink, error) {
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = shopauth.SeverityHigh
	}
	if cfg.DSN == "" {
		return &Sink{min: cfg.MinSeverity}, nil
	}

	client, err := sentrygo.NewClient(sentrygo.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		AttachStacktrace: false,
	})
	if err != nil {
		return nil, err
	}

	hub := sentrygo.NewHub(client, sentrygo.NewScope())
	return &Sink{hub: hub, min: cfg.MinSeverity}, nil
}

// Emit implements [shopauth.SecuritySink].
func (s *Sink) Emit(_ context.Context, event shopauth.SecurityEvent) {
	if s.hub == nil || severityRank(event.Severity) < severityRank(s.min) {
		return
	}

	s.hub.WithScope(func(scope *sentrygo.Scope) {
		scope.SetLevel(sentryLevel(event.Severity))
		scope.SetTag("security_event", event.EventType)
		if event.Subject != "" {
			scope.SetUser(sentrygo.User{ID: event.Subject, IPAddress: event.IP})
		}
		for k, v := range event.Context {
			scope.SetExtra(k, v)
		}
		s.hub.CaptureMessage(event.EventType)
	})
}

// Flush blocks until buffered events are delivered or the timeout expires.
func (s *Sink) Flush(timeout time.Duration) {
	if s.hub != nil {
		s.hub.Flush(timeout)
	}
}

func severityRank(sev shopauth.Severity) int {
	switch sev {
	case shopauth.SeverityLow:
		return 0
	case shopauth.SeverityMedium:
		return 1
	case shopauth.SeverityHigh:
		return 2
	case shopauth.SeverityCritical:
		return 3
	default:
		return 0
	}
}

func sentryLevel(sev shopauth.Severity) sentrygo.Level {
	switch sev {
	case shopauth.SeverityCritical:
		return sentrygo.LevelFatal
	case shopauth.SeverityHigh:
		return sentrygo.LevelError
	case shopauth.SeverityMedium:
		return sentrygo.LevelWarning
	default:
		return sentrygo.LevelInfo
	}
}
