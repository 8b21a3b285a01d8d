package controllers

import (
	"github.com/gin-gonic/gin"

	"diagnostics-api/services"
)

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

// Login handles user authentication
func Login(c *gin.Context) {
	var req services.LoginInput
	if !bind(c, &req) {
		return
	}
	result, err := svc.Auth.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

// Register creates a self-service client account.
func Register(c *gin.Context) {
	var req services.RegisterInput
	if !bind(c, &req) {
		return
	}
	user, err := svc.Auth.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, gin.H{"user": user})
}

// ResetPassword sets a new password from a reset or activation token.
func ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := svc.Auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		fail(c, err)
		return
	}
	message(c, "password updated")
}

// ForgotPassword always answers the same way so addresses cannot be enumerated.
func ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := svc.Auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		fail(c, err)
		return
	}
	message(c, "if the address is registered, a reset link has been sent")
}

func GetProfile(c *gin.Context) {
	profile, err := svc.Auth.Me(c.Request.Context(), actor(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, profile)
}

func ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := svc.Auth.ChangePassword(c.Request.Context(), actor(c).UserID, req.CurrentPassword, req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	message(c, "password changed")
}
