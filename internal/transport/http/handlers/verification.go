package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codarkat/rumai/internal/transport/http/middleware"
	"github.com/codarkat/rumai/internal/usecase"
)

// VerificationHandler exposes email verification endpoints.
type VerificationHandler struct {
	verification *usecase.VerificationService
	dispatcher   NotificationDispatcher
	isDev        bool
}

// NewVerificationHandler constructs VerificationHandler.
func NewVerificationHandler(verification *usecase.VerificationService, dispatcher NotificationDispatcher, isDev bool) *VerificationHandler {
	if dispatcher == nil {
		dispatcher = noopDispatcher{}
	}
	return &VerificationHandler{
		verification: verification,
		dispatcher:   dispatcher,
		isDev:        isDev,
	}
}

// Initiate starts verification for the authenticated account.
func (h *VerificationHandler) Initiate(c *gin.Context) {
	user, ok := middleware.AuthenticatedUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	initiation, err := h.verification.InitiateEmailVerification(c.Request.Context(), user.ID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to initiate verification")
		return
	}

	if initiation.AlreadyVerified {
		c.JSON(http.StatusOK, VerificationInitiateResponse{Message: "email already verified"})
		return
	}

	_ = h.dispatcher.SendEmailVerification(c.Request.Context(), VerificationNotification{
		Email:     user.Email,
		Token:     initiation.Token,
		ExpiresAt: initiation.ExpiresAt,
	})

	resp := VerificationInitiateResponse{Message: "verification email sent"}
	if h.isDev {
		token := initiation.Token
		expires := initiation.ExpiresAt
		resp.DevToken = &token
		resp.ExpiresAt = &expires
	}

	c.JSON(http.StatusOK, resp)
}

// Confirm redeems the verification token passed as a query parameter.
func (h *VerificationHandler) Confirm(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token is required"))
		return
	}

	result, err := h.verification.ConfirmEmailVerification(c.Request.Context(), token)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrVerificationTokenInvalid, Status: http.StatusBadRequest, Message: "invalid or expired token"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to verify email")
		return
	}

	if result.AlreadyVerified {
		c.JSON(http.StatusOK, MessageResponse{Message: "email already verified"})
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "email verified successfully"})
}
