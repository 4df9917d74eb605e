package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codarkat/rumai/internal/infra/security"
	"github.com/codarkat/rumai/internal/transport/http/middleware"
	"github.com/codarkat/rumai/internal/usecase"
)

// PasswordHandler exposes password reset and change endpoints.
type PasswordHandler struct {
	reset      *usecase.PasswordResetService
	dispatcher NotificationDispatcher
	isDev      bool
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(reset *usecase.PasswordResetService, dispatcher NotificationDispatcher, isDev bool) *PasswordHandler {
	if dispatcher == nil {
		dispatcher = noopDispatcher{}
	}
	return &PasswordHandler{
		reset:      reset,
		dispatcher: dispatcher,
		isDev:      isDev,
	}
}

// ForgotPassword starts a reset. The response shape is identical for known
// and unknown emails so the endpoint cannot enumerate accounts; only dev
// mode echoes the token for a known account.
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	initiation, err := h.reset.ForgotPassword(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to process request"))
		return
	}

	if initiation.UserFound {
		_ = h.dispatcher.SendPasswordReset(c.Request.Context(), PasswordResetNotification{
			Email:     strings.ToLower(strings.TrimSpace(req.Email)),
			Token:     initiation.Token,
			ExpiresAt: initiation.ExpiresAt,
		})
	}

	resp := ForgotPasswordResponse{
		Message: "if the email exists, a reset link has been sent",
	}
	if h.isDev && initiation.UserFound {
		token := initiation.Token
		expires := initiation.ExpiresAt
		resp.DevToken = &token
		resp.ExpiresAt = &expires
	}

	c.JSON(http.StatusOK, resp)
}

// ResetPassword redeems a reset token.
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token and new_password are required"))
		return
	}

	if err := h.reset.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.respondPasswordError(c, err, []ErrorCase{
			{Err: usecase.ErrResetTokenInvalid, Status: http.StatusBadRequest, Message: "invalid or expired token"},
			{Err: usecase.ErrResetTokenExpired, Status: http.StatusBadRequest, Message: "invalid or expired token"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password reset successfully"})
}

// ChangePassword rotates the password of the authenticated account.
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.AuthenticatedUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "current_password and new_password are required"))
		return
	}

	if err := h.reset.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondPasswordError(c, err, []ErrorCase{
			{Err: usecase.ErrCurrentPasswordInvalid, Status: http.StatusBadRequest, Message: "current password is incorrect"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed successfully"})
}

func (h *PasswordHandler) respondPasswordError(c *gin.Context, err error, cases []ErrorCase, fallback string) {
	var policyErr *security.PasswordValidationError
	if errors.As(err, &policyErr) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Message))
		return
	}

	RespondWithMappedError(c, err, cases, http.StatusInternalServerError, fallback)
}
