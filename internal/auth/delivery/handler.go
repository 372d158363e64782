package delivery

import (
	"net/http"

	authdomain "dailyrush-backend/internal/auth/domain"
	authdto "dailyrush-backend/internal/auth/dto"
	"dailyrush-backend/internal/auth/repository"
	"dailyrush-backend/internal/auth/usecase"
	"dailyrush-backend/internal/session"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles account and sign-in HTTP requests. Every
// successful sign-in also flows through the session context so the
// widget's storage namespace follows the identity.
type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	session     *session.Context
	fcmRepo     repository.FCMTokenRepository
}

func NewAuthHandler(authUsecase usecase.AuthUsecase, sessionCtx *session.Context, fcmRepo repository.FCMTokenRepository) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		session:     sessionCtx,
		fcmRepo:     fcmRepo,
	}
}

// Register creates a first-party account and signs it in
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req authdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authUsecase.Register(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.session.SignIn(c.Request.Context(), resp.Identity)
	c.JSON(http.StatusCreated, resp)
}

// Login signs a first-party account in
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req authdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authUsecase.Login(&req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	h.session.SignIn(c.Request.Context(), resp.Identity)
	c.JSON(http.StatusOK, resp)
}

// GoogleSignIn verifies a Google ID token and signs in
// POST /api/auth/google
func (h *AuthHandler) GoogleSignIn(c *gin.Context) {
	var req authdto.GoogleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authUsecase.GoogleSignIn(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	h.session.SignIn(c.Request.Context(), resp.Identity)
	c.JSON(http.StatusOK, resp)
}

// RefreshToken rotates a refresh token into a new pair
// POST /api/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req authdto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authUsecase.RefreshToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Logout invalidates the refresh token and reverts to guest mode
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req authdto.LogoutRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		if err := h.authUsecase.Logout(req.RefreshToken); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	h.session.SignOut()
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the session's identity with any profile overrides applied
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := h.session.Identity()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         identity,
		"display_name": identity.EffectiveDisplayName(),
		"avatar_url":   identity.EffectiveAvatarURL(),
	})
}

// UpdateProfile overrides the displayed name and avatar
// PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req authdto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, err := h.session.UpdateProfile(c.Request.Context(), req.CustomName, req.CustomPicture)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": identity})
}

// ResetProfile clears the overrides so provider values show again
// DELETE /api/auth/profile
func (h *AuthHandler) ResetProfile(c *gin.Context) {
	identity, err := h.session.ResetProfile(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": identity})
}

// RegisterFCMToken stores a device token for due-task reminders
// POST /api/fcm/register
func (h *AuthHandler) RegisterFCMToken(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req authdto.RegisterFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account := user.(*authdomain.User)
	if err := h.fcmRepo.SaveToken(account.ID, req.Token, req.DeviceInfo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "token registered"})
}

// UnregisterFCMToken removes a device token
// DELETE /api/fcm/:token
func (h *AuthHandler) UnregisterFCMToken(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
		return
	}

	if err := h.fcmRepo.DeleteToken(token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "token removed"})
}
