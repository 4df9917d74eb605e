package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codarkat/rumai/internal/core/port"
	"github.com/codarkat/rumai/internal/transport/http/middleware"
	"github.com/codarkat/rumai/internal/usecase"
)

// ProfileHandler exposes profile endpoints for the authenticated account.
type ProfileHandler struct {
	profiles *usecase.ProfileService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(profiles *usecase.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// RegisterRoutes binds profile routes. Every route requires authentication.
func (h *ProfileHandler) RegisterRoutes(r *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	group := r.Group("/profile")
	group.Use(authMiddleware)
	group.GET("", h.Get)
	group.PUT("", h.Update)
	group.DELETE("", h.Deactivate)
	group.PUT("/email", h.UpdateEmail)
	group.DELETE("/permanent", h.DeletePermanently)
}

// Get returns the authenticated user's profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	user, ok := middleware.AuthenticatedUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	profile, err := h.profiles.GetProfile(c.Request.Context(), user.ID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to load profile")
		return
	}

	c.JSON(http.StatusOK, newUserProfile(*profile))
}

// Update applies partial profile changes.
func (h *ProfileHandler) Update(c *gin.Context) {
	user, ok := middleware.AuthenticatedUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid profile payload"))
		return
	}

	updated, err := h.profiles.UpdateProfile(c.Request.Context(), user.ID, port.UserProfileUpdate{
		Username:      req.Username,
		FullName:      req.FullName,
		Age:           req.Age,
		Gender:        req.Gender,
		LanguageLevel: req.LanguageLevel,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUsernameTaken, Status: http.StatusBadRequest, Message: "username already taken"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to update profile")
		return
	}

	c.JSON(http.StatusOK, newUserProfile(*updated))
}

// UpdateEmail changes the account email. The new address starts unverified.
func (h *ProfileHandler) UpdateEmail(c *gin.Context) {
	user, ok := middleware.AuthenticatedUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req EmailUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "a valid email is required"))
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if err := h.profiles.UpdateEmail(c.Request.Context(), user.ID, email); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEmailTaken, Status: http.StatusBadRequest, Message: "email already registered"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to update email")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "email updated; verification required"})
}

// Deactivate soft-deletes the account.
func (h *ProfileHandler) Deactivate(c *gin.Context) {
	user, ok := middleware.AuthenticatedUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.profiles.Deactivate(c.Request.Context(), user.ID); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to deactivate account")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account deactivated"})
}

// DeletePermanently removes the account row entirely.
func (h *ProfileHandler) DeletePermanently(c *gin.Context) {
	user, ok := middleware.AuthenticatedUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.profiles.DeletePermanently(c.Request.Context(), user.ID); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to delete account")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account permanently deleted"})
}
