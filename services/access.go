package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"diagnostics-api/apperrors"
	"diagnostics-api/models"
)

// SystemActor is used by scheduler passes that are not tied to a user.
var SystemActor = Actor{UserID: "", Role: models.RoleSuperAdmin}

// scopeProjects restricts a projects query to what actor may see.
func scopeProjects(q *gorm.DB, actor Actor) *gorm.DB {
	if actor.Role == models.RoleSuperAdmin {
		return q
	}
	q = q.Where("projects.organization_id IN (?)",
		q.Session(&gorm.Session{NewDB: true}).
			Model(&models.Organization{}).
			Select("id").
			Where("tenant_id = ?", actor.TenantID))
	if actor.Role == models.RoleClient {
		q = q.Where("projects.organization_id = ?", actor.OrganizationID)
	}
	return q
}

// findProjectFor loads a project with its organization and enforces the
// tenant and client scoping rules for actor.
func findProjectFor(ctx context.Context, db *gorm.DB, actor Actor, projectID string) (*models.Project, error) {
	var project models.Project
	err := db.WithContext(ctx).Preload("Organization").Where("id = ?", projectID).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("project")
	}
	if err != nil {
		return nil, err
	}
	if err := authorizeProject(actor, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// authorizeProject expects project.Organization preloaded. A project whose
// organization is gone is reported as missing.
func authorizeProject(actor Actor, project *models.Project) error {
	if project.Organization == nil {
		return apperrors.NotFound("project")
	}
	if actor.Role == models.RoleSuperAdmin {
		return nil
	}
	if project.Organization.TenantID != actor.TenantID {
		return apperrors.NotFound("project")
	}
	if actor.Role == models.RoleClient && project.OrganizationID != actor.OrganizationID {
		return apperrors.Forbidden("access denied to this project")
	}
	if actor.Role == models.RoleRespondent {
		return apperrors.Forbidden("access denied to this project")
	}
	return nil
}

// findOrganizationFor loads an organization visible to actor.
func findOrganizationFor(ctx context.Context, db *gorm.DB, actor Actor, organizationID string) (*models.Organization, error) {
	var org models.Organization
	err := db.WithContext(ctx).Where("id = ?", organizationID).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("organization")
	}
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleSuperAdmin && org.TenantID != actor.TenantID {
		return nil, apperrors.NotFound("organization")
	}
	if actor.Role == models.RoleClient && org.ID != actor.OrganizationID {
		return nil, apperrors.Forbidden("access denied to this organization")
	}
	return &org, nil
}

// projectTenant loads the branding columns of the tenant owning a project,
// or nil when it cannot be resolved.
func projectTenant(ctx context.Context, db *gorm.DB, projectID string) *models.Tenant {
	var tenant models.Tenant
	err := db.WithContext(ctx).Model(&models.Tenant{}).
		Select("tenants.id", "tenants.primary_color", "tenants.logo_path").
		Joins("JOIN organizations ON organizations.tenant_id = tenants.id").
		Joins("JOIN projects ON projects.organization_id = organizations.id").
		Where("projects.id = ?", projectID).
		Take(&tenant).Error
	if err != nil {
		return nil
	}
	return &tenant
}
