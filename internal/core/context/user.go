// Package context carries request-scoped identity and tracing values.
package context

import (
	"context"
)

// Technician is the authenticated field technician a request acts for.
// Identity is issued by an external auth feature; this service only reads it.
type Technician struct {
	TechnicianID string
	TeamID       string
	Name         string
}

type technicianKey struct{}

// WithTechnician adds Technician to context.
func WithTechnician(ctx context.Context, t *Technician) context.Context {
	return context.WithValue(ctx, technicianKey{}, t)
}

// GetTechnician returns Technician from context or nil.
func GetTechnician(ctx context.Context) *Technician {
	if v, ok := ctx.Value(technicianKey{}).(*Technician); ok {
		return v
	}
	return nil
}

// GetTechnicianID returns the technician id from context or empty string.
func GetTechnicianID(ctx context.Context) string {
	if t := GetTechnician(ctx); t != nil {
		return t.TechnicianID
	}
	return ""
}

// GetTeamID returns the team id from context or empty string.
func GetTeamID(ctx context.Context) string {
	if t := GetTechnician(ctx); t != nil {
		return t.TeamID
	}
	return ""
}
