package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"petamigos/contentguard/internal/guard"
	"petamigos/contentguard/internal/middleware"
)

type acceptResponse struct {
	Status string        `json:"status"`
	Checks []guard.State `json:"checks"`
}

// AcceptContent stands in for the product handlers behind the guard.
func (h HandlerSet) AcceptContent(c *gin.Context) {
	resp := acceptResponse{Status: "accepted"}
	if d, ok := middleware.GuardDecision(c); ok {
		resp.Checks = d.Trail
	}
	c.JSON(http.StatusAccepted, resp)
}
