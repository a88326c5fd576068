package handler

import (
	"net/http"

	"github.com/sbguangha/tianyishenshu/internal/middleware"
	"github.com/sbguangha/tianyishenshu/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	service       service.AuthService
	exchangeCodes service.ExchangeCodeService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(s service.AuthService, exchangeCodes service.ExchangeCodeService) *AuthHandler {
	return &AuthHandler{service: s, exchangeCodes: exchangeCodes}
}

func (h *AuthHandler) SendSMSCode(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.service.SendSMSCode(c.Request.Context(), req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"message": "Verification code sent"}
	if res.DevCode != "" {
		body["code"] = res.DevCode
	}
	c.JSON(http.StatusOK, body)
}

func (h *AuthHandler) LoginWithSMS(c *gin.Context) {
	var req struct {
		Phone      string `json:"phone" binding:"required"`
		Code       string `json:"code" binding:"required"`
		RememberMe bool   `json:"remember_me"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.service.LoginWithSMS(c.Request.Context(), req.Phone, req.Code, req.RememberMe)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Phone      string `json:"phone" binding:"required"`
		Password   string `json:"password" binding:"required"`
		RememberMe bool   `json:"remember_me"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.service.Register(c.Request.Context(), req.Phone, req.Password, req.RememberMe)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Phone      string `json:"phone" binding:"required"`
		Password   string `json:"password" binding:"required"`
		RememberMe bool   `json:"remember_me"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.service.LoginWithPassword(c.Request.Context(), req.Phone, req.Password, req.RememberMe)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CheckExchangeCode tells a client whether a code can still be redeemed, without redeeming it
func (h *AuthHandler) CheckExchangeCode(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	valid, _, err := h.exchangeCodes.Validate(c.Request.Context(), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

func (h *AuthHandler) RedeemLogin(c *gin.Context) {
	var req struct {
		Phone        string `json:"phone" binding:"required"`
		Code         string `json:"code" binding:"required"`
		ExchangeCode string `json:"exchange_code" binding:"required"`
		RememberMe   bool   `json:"remember_me"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.service.RedeemLogin(c.Request.Context(), req.Phone, req.Code, req.ExchangeCode, req.RememberMe)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required", "code": middleware.CodeTokenMissing})
		return
	}
	c.JSON(http.StatusOK, h.service.Me(claims))
}

// RegisterAuthRoutes registers auth routes
func (h *AuthHandler) RegisterAuthRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/sms/send", h.SendSMSCode)
		authGroup.POST("/sms/login", h.LoginWithSMS)
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/exchange-codes/check", h.CheckExchangeCode)
		authGroup.POST("/redeem-login", h.RedeemLogin)
		authGroup.GET("/me", authMW, middleware.UserMiddleware(), h.Me)
	}
}
