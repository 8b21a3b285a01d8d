package controllers

import (
	"github.com/gin-gonic/gin"

	"diagnostics-api/models"
	"diagnostics-api/services"
)

func GetUsers(c *gin.Context) {
	filter := services.UserFilter{
		Role:   models.Role(c.Query("role")),
		Status: models.UserStatus(c.Query("status")),
		Search: c.Query("search"),
	}
	users, err := svc.Users.List(c.Request.Context(), actor(c), filter)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, users)
}

func CreateUser(c *gin.Context) {
	var req services.CreateUserInput
	if !bind(c, &req) {
		return
	}
	user, err := svc.Users.Create(c.Request.Context(), actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, user)
}

func UpdateUser(c *gin.Context) {
	var req services.UpdateUserInput
	if !bind(c, &req) {
		return
	}
	user, err := svc.Users.Update(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, user)
}
