package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"diagnostics-api/services"
)

type ImportTeamMembersRequest struct {
	Members []services.TeamMemberInput `json:"members" binding:"required,min=1,dive"`
}

func GetOrganizations(c *gin.Context) {
	orgs, err := svc.Organizations.List(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, orgs)
}

func GetOrganization(c *gin.Context) {
	org, err := svc.Organizations.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, org)
}

func CreateOrganization(c *gin.Context) {
	var req services.OrganizationInput
	if !bind(c, &req) {
		return
	}
	org, err := svc.Organizations.Create(c.Request.Context(), actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, org)
}

// UpdateOrganization also reconciles the checklists of the organization's
// projects, since profile fields satisfy checklist items.
func UpdateOrganization(c *gin.Context) {
	var req services.OrganizationInput
	if !bind(c, &req) {
		return
	}
	org, err := svc.Organizations.Update(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, org)
}

func DeleteOrganization(c *gin.Context) {
	if err := svc.Organizations.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func GetTeamMembers(c *gin.Context) {
	members, err := svc.Organizations.TeamMembers(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, members)
}

func ImportTeamMembers(c *gin.Context) {
	var req ImportTeamMembersRequest
	if !bind(c, &req) {
		return
	}
	n, err := svc.Organizations.ImportTeamMembers(c.Request.Context(), actor(c), c.Param("id"), req.Members)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, gin.H{"imported": n})
}
