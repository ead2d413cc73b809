package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ReportStatusHealthy indicates no system-wide problem.
	ReportStatusHealthy = "healthy"
	// ReportStatusDegraded indicates partial sub-component failures.
	ReportStatusDegraded = "degraded"
	// ReportStatusCritical indicates system-wide critical failure.
	ReportStatusCritical = "critical"

	// CheckStatusPass indicates sub-component check passed.
	CheckStatusPass = "pass"
	// CheckStatusWarn indicates sub-component check is degraded.
	CheckStatusWarn = "warn"
	// CheckStatusFail indicates sub-component check failed.
	CheckStatusFail = "fail"
)

// ComponentCheck is one sub-component entry of a quality/health report.
// Params: component identity, check status, and numeric score.
// Returns: per-component input for report-to-alert synthesis.
type ComponentCheck struct {
	Component string         `json:"component"`
	Status    string         `json:"status"`
	Score     float64        `json:"score"`
	Message   string         `json:"message,omitempty"`
	Metrics   map[string]any `json:"metrics,omitempty"`
}

// RiskSummary is risk-specific sub-report of a quality/health report.
// Params: risk status, exposure value, and free-text summary.
// Returns: risk input for report-to-alert synthesis.
type RiskSummary struct {
	Status   string  `json:"status"`
	Exposure float64 `json:"exposure,omitempty"`
	Summary  string  `json:"summary,omitempty"`
}

// QualityReport is structured producer report consumed by bulk ingestion.
// Params: overall status/score, per-component checks, and optional risk block.
// Returns: the only business-semantics payload the engine inspects.
type QualityReport struct {
	GeneratedAt   time.Time        `json:"generated_at"`
	OverallStatus string           `json:"overall_status"`
	OverallScore  float64          `json:"overall_score,omitempty"`
	Components    []ComponentCheck `json:"components,omitempty"`
	Risk          *RiskSummary     `json:"risk,omitempty"`
}

// DecodeReport decodes and validates one JSON quality report.
// Params: raw JSON payload.
// Returns: parsed report or validation error.
func DecodeReport(payload []byte) (QualityReport, error) {
	var report QualityReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return QualityReport{}, fmt.Errorf("decode report: %w", err)
	}

	report.OverallStatus = strings.ToLower(strings.TrimSpace(report.OverallStatus))
	if report.OverallStatus == "" {
		return QualityReport{}, errors.New("report overall_status is required")
	}
	for index := range report.Components {
		check := &report.Components[index]
		check.Component = strings.TrimSpace(check.Component)
		check.Status = strings.ToLower(strings.TrimSpace(check.Status))
		if check.Component == "" {
			return QualityReport{}, fmt.Errorf("report component #%d has empty name", index)
		}
		if check.Status == "" {
			return QualityReport{}, fmt.Errorf("report component %q has empty status", check.Component)
		}
	}
	if report.Risk != nil {
		report.Risk.Status = strings.ToLower(strings.TrimSpace(report.Risk.Status))
	}
	return report, nil
}
