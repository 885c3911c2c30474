package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/david-solomon-henshaw/MedAppV1/internal/handler"
	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/auth"
)

type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g handler.Groups) {
	auth := g.Public.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/verify-otp", h.VerifyOTP)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	role, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.LoginResponse{Message: "OTP sent to email", Role: role})
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req model.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	token, err := h.svc.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.VerifyOTPResponse{Message: "OTP verified successfully", Token: token})
}
