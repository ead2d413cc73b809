package engine

import (
	"context"
	"fmt"

	"alertflow/internal/domain"
)

// CreateAlertsFromReport synthesizes alerts from one quality/health report.
// Params: context and validated report payload.
// Returns: created alerts (throttled creates are skipped silently). This
// adapter is the only place report semantics enter the engine; the core
// lifecycle stays domain-agnostic.
func (e *Engine) CreateAlertsFromReport(ctx context.Context, report domain.QualityReport) ([]domain.Alert, error) {
	created := make([]domain.Alert, 0, len(report.Components)+2)

	if report.OverallStatus == domain.ReportStatusCritical {
		alert, err := e.CreateAlert(ctx, domain.AlertInput{
			Level:     domain.LevelCritical,
			Component: "system",
			Title:     "System health critical",
			Message:   fmt.Sprintf("Overall system status is critical (score %.1f).", report.OverallScore),
			Details:   map[string]any{"overall_score": report.OverallScore},
			Actions:   []string{"Check failing components", "Page the on-call operator"},
		})
		if err != nil {
			return created, err
		}
		if alert != nil {
			created = append(created, *alert)
		}
	}

	for _, check := range report.Components {
		if check.Status != domain.CheckStatusFail {
			continue
		}
		level := domain.LevelError
		if check.Score < e.opts.LowScoreThreshold {
			level = domain.LevelCritical
		}
		message := check.Message
		if message == "" {
			message = fmt.Sprintf("Component check failed with score %.1f.", check.Score)
		}
		alert, err := e.CreateAlert(ctx, domain.AlertInput{
			Level:     level,
			Component: check.Component,
			Title:     check.Component + " check failed",
			Message:   message,
			Details:   map[string]any{"score": check.Score},
			Metrics:   check.Metrics,
		})
		if err != nil {
			return created, err
		}
		if alert != nil {
			created = append(created, *alert)
		}
	}

	if report.Risk != nil && report.Risk.Status == domain.ReportStatusCritical {
		message := report.Risk.Summary
		if message == "" {
			message = fmt.Sprintf("Risk exposure is critical (%.1f).", report.Risk.Exposure)
		}
		alert, err := e.CreateAlert(ctx, domain.AlertInput{
			Level:     domain.LevelCritical,
			Component: "risk",
			Title:     "Critical risk exposure",
			Message:   message,
			Details:   map[string]any{"exposure": report.Risk.Exposure},
		})
		if err != nil {
			return created, err
		}
		if alert != nil {
			created = append(created, *alert)
		}
	}

	return created, nil
}
