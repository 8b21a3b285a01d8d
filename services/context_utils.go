package services

import (
	"context"

	"go.uber.org/zap"

	"diagnostics-api/config"
	"diagnostics-api/models"
)

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	UserID         string
	TenantID       string
	OrganizationID string
	Email          string
	Role           models.Role
}

func (a Actor) IsStaff() bool { return a.Role.IsStaff() }

// CanSeeConfidential reports whether interview identities may be shown.
func (a Actor) CanSeeConfidential() bool {
	return a.Role == models.RoleSuperAdmin || a.Role == models.RoleAdmin || a.Role == models.RoleConsultant
}

func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

// logAndContinue logs a failed side effect. The caller carries on with the
// state it already committed.
func logAndContinue(logger *zap.Logger, action string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	logger.Warn(action+" failed", append(fields, zap.Error(err))...)
}

func loggerOrDefault(logger *zap.Logger) *zap.Logger {
	if logger != nil {
		return logger
	}
	if config.Logger != nil {
		return config.Logger
	}
	return zap.NewNop()
}
