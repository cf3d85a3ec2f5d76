package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paveldemidov/flightbook/internal/repository"
	"github.com/paveldemidov/flightbook/internal/service/auth"
)

const (
	authCookie     = "access_token"
	ctxClaimsKey   = "claims"
	cookieMaxAge   = 24 * 60 * 60
	bearerPrefix   = "Bearer "
)

type AuthHandler struct {
	service auth.AuthUseCase
}

func NewAuthHandler(service auth.AuthUseCase) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Register(router *gin.RouterGroup) {
	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.POST("/logout", h.logout)
	router.GET("/profile", h.Authenticated(), h.profile)
}

func (h *AuthHandler) register(c *gin.Context) {
	var input auth.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.Register(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "username or email already taken"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "registration successful", "user": user})
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "login and password are required"})
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid login or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.SetCookie(authCookie, token, cookieMaxAge, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": token, "user": user})
}

func (h *AuthHandler) logout(c *gin.Context) {
	c.SetCookie(authCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) profile(c *gin.Context) {
	claims := MustClaims(c)

	user, bookings, err := h.service.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "bookings": bookings})
}

// Authenticated accepts the token from the auth cookie or an Authorization
// bearer header and stores the parsed claims on the context.
func (h *AuthHandler) Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(authCookie)
		if err != nil || token == "" {
			header := c.GetHeader("Authorization")
			if strings.HasPrefix(header, bearerPrefix) {
				token = strings.TrimPrefix(header, bearerPrefix)
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		claims, err := h.service.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ctxClaimsKey, claims)
		c.Next()
	}
}

// AdminOnly must run after Authenticated.
func (h *AuthHandler) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := MustClaims(c)
		if !claims.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func MustClaims(c *gin.Context) *auth.Claims {
	return c.MustGet(ctxClaimsKey).(*auth.Claims)
}
