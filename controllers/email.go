package controllers

import (
	"github.com/gin-gonic/gin"

	"diagnostics-api/apperrors"
)

type TestEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// TestEmailConnection checks that the SMTP relay accepts a session.
func TestEmailConnection(c *gin.Context) {
	if err := svc.Emails.CheckConnection(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	message(c, "SMTP connection OK")
}

// SendTestEmail delivers a sample message in the caller's tenant branding.
func SendTestEmail(c *gin.Context) {
	var req TestEmailRequest
	if !bind(c, &req) {
		return
	}
	tenant, err := svc.Tenants.Get(c.Request.Context(), actor(c).TenantID)
	if err != nil && !apperrors.IsNotFound(err) {
		fail(c, err)
		return
	}
	if err := svc.Emails.SendTest(c.Request.Context(), req.Email, svc.Emails.Branding(tenant)); err != nil {
		fail(c, err)
		return
	}
	message(c, "test e-mail sent")
}
