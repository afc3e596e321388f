package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/grantsops/grants-engine/pkg/auth"
)

// SecurityEventType categorizes security-relevant events for filtering and
// alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection detects SQL
	// injection patterns in a free-text field.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventReviewDenied is logged when a user attempts to review a change
	// request outside their division.
	EventReviewDenied SecurityEventType = "review_denied"
)

// SecurityAuditor logs security events in structured JSON for SIEM
// consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a security auditor with a dedicated logger
// namespace so events are easy to filter downstream.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a detected SQL injection pattern in a free-text
// field, with the libinjection fingerprint for pattern analysis.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, result *InjectionCheckResult) {
	if result == nil {
		return
	}
	a.logger.Warn("SQL injection pattern in free-text field",
		zap.Time("timestamp", time.Now()),
		zap.String("event_type", string(EventSQLInjectionAttempt)),
		zap.Int64p("user_id", auth.ActorID(ctx)),
		zap.String("field_name", result.FieldName),
		zap.String("fingerprint", result.Fingerprint),
		zap.String("severity", "warning"),
	)
}

// LogReviewDenied records a rejected change-request review attempt.
func (a *SecurityAuditor) LogReviewDenied(ctx context.Context, changeRequestID string, divisionID *int64) {
	a.logger.Warn("Change request review denied",
		zap.Time("timestamp", time.Now()),
		zap.String("event_type", string(EventReviewDenied)),
		zap.Int64p("user_id", auth.ActorID(ctx)),
		zap.String("change_request_id", changeRequestID),
		zap.Int64p("managing_division_id", divisionID),
		zap.String("severity", "warning"),
	)
}
