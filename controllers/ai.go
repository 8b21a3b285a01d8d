package controllers

import (
	"github.com/gin-gonic/gin"

	"diagnostics-api/services"
)

func Chat(c *gin.Context) {
	var req services.ChatInput
	if !bind(c, &req) {
		return
	}
	reply, err := svc.AI.Chat(c.Request.Context(), actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, reply)
}

func GetConversations(c *gin.Context) {
	conversations, err := svc.AI.Conversations(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, conversations)
}

func GetConversationMessages(c *gin.Context) {
	messages, err := svc.AI.Messages(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, messages)
}
