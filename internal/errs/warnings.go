package errs

import "fmt"

// WarningCode classifies a recoverable data gap.
type WarningCode string

const (
	WarnCostFallback     WarningCode = "cost_fallback"
	WarnCostDefault      WarningCode = "cost_default"
	WarnForecastDefault  WarningCode = "forecast_default"
	WarnUnitRuleFallback WarningCode = "unit_rule_fallback"
	WarnTargetsFallback  WarningCode = "targets_fallback"
)

// Warning is a non-fatal data gap absorbed with a fallback value.
type Warning struct {
	Code    WarningCode `json:"code"`
	Subject string      `json:"subject,omitempty"`
	Message string      `json:"message"`
}

// Warn builds a Warning.
func Warn(code WarningCode, subject, format string, args ...interface{}) Warning {
	return Warning{Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

func (w Warning) String() string {
	if w.Subject == "" {
		return fmt.Sprintf("%s: %s", w.Code, w.Message)
	}
	return fmt.Sprintf("%s[%s]: %s", w.Code, w.Subject, w.Message)
}
