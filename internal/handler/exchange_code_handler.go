package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sbguangha/tianyishenshu/internal/middleware"
	"github.com/sbguangha/tianyishenshu/internal/model"
	"github.com/sbguangha/tianyishenshu/internal/service"

	"github.com/gin-gonic/gin"
)

// ExchangeCodeHandler serves the administrative exchange code endpoints
type ExchangeCodeHandler struct {
	service service.ExchangeCodeService
}

// NewExchangeCodeHandler creates a new ExchangeCodeHandler
func NewExchangeCodeHandler(s service.ExchangeCodeService) *ExchangeCodeHandler {
	return &ExchangeCodeHandler{service: s}
}

// Helper to get the acting admin's phone from context
func getAuthPhone(c *gin.Context) string {
	phone := c.GetString(middleware.AuthPhoneKey)
	if phone == "" {
		return c.GetString(middleware.AuthUserKey)
	}
	return phone
}

func (h *ExchangeCodeHandler) Generate(c *gin.Context) {
	var req struct {
		Count *int `json:"count"`
	}
	// an empty body generates a single code
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}
	count := 1
	if req.Count != nil {
		count = *req.Count
	}

	codes, err := h.service.GenerateBatch(c.Request.Context(), getAuthPhone(c), count)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"codes": codes})
}

func (h *ExchangeCodeHandler) List(c *gin.Context) {
	filters := model.ExchangeCodeFilters{Status: c.Query("status")}

	if pageParam := c.Query("page"); pageParam != "" {
		page, err := strconv.Atoi(pageParam)
		if err != nil {
			respondError(c, &service.Error{Code: service.CodeValidation, Message: "Invalid page, must be an integer"})
			return
		}
		filters.Page = page
	}
	if limitParam := c.Query("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil {
			respondError(c, &service.Error{Code: service.CodeValidation, Message: "Invalid limit, must be an integer"})
			return
		}
		filters.Limit = limit
	}

	page, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ExchangeCodeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Exchange code deleted successfully"})
}

func (h *ExchangeCodeHandler) ExpirePending(c *gin.Context) {
	var req struct {
		OlderThan string `json:"older_than" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	olderThan, err := time.ParseDuration(req.OlderThan)
	if err != nil {
		respondError(c, &service.Error{Code: service.CodeValidation, Message: "Invalid older_than, use a duration such as 72h"})
		return
	}

	n, err := h.service.ExpirePending(c.Request.Context(), olderThan)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": n})
}

// RegisterExchangeCodeRoutes registers the admin exchange code routes
func (h *ExchangeCodeHandler) RegisterExchangeCodeRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, adminMW gin.HandlerFunc) {
	adminRoutes := rg.Group("/admin/exchange-codes")
	adminRoutes.Use(authMW)  // Requires authentication
	adminRoutes.Use(adminMW) // Requires admin role
	{
		adminRoutes.POST("", h.Generate)
		adminRoutes.GET("", h.List)
		adminRoutes.DELETE("/:id", h.Delete)
		adminRoutes.POST("/expire", h.ExpirePending)
	}
}
