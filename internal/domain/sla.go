package domain

import (
	"fmt"
	"time"
)

// Severity enumerates alert severities recognized by the SLA policy.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SLATargets are the response and resolution windows for a severity,
// applied relative to ticket creation time.
type SLATargets struct {
	FirstResponse time.Duration
	Resolution    time.Duration
}

var slaTargets = map[Severity]SLATargets{
	SeverityCritical: {FirstResponse: 15 * time.Minute, Resolution: 4 * time.Hour},
	SeverityHigh:     {FirstResponse: 30 * time.Minute, Resolution: 8 * time.Hour},
	SeverityMedium:   {FirstResponse: 2 * time.Hour, Resolution: 24 * time.Hour},
	SeverityLow:      {FirstResponse: 8 * time.Hour, Resolution: 72 * time.Hour},
}

// InvalidSeverityError reports an unrecognized severity value.
type InvalidSeverityError struct {
	Value string
}

func (e *InvalidSeverityError) Error() string {
	return fmt.Sprintf("invalid severity %q", e.Value)
}

// SLAForSeverity returns the SLA targets for a severity.
func SLAForSeverity(severity Severity) (SLATargets, error) {
	targets, ok := slaTargets[severity]
	if !ok {
		return SLATargets{}, &InvalidSeverityError{Value: string(severity)}
	}
	return targets, nil
}

// ParseSeverity validates a raw severity string.
func ParseSeverity(raw string) (Severity, error) {
	severity := Severity(raw)
	if _, ok := slaTargets[severity]; !ok {
		return "", &InvalidSeverityError{Value: raw}
	}
	return severity, nil
}

// Severities lists the recognized severities in escalating order.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}
