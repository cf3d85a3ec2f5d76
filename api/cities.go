package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paveldemidov/flightbook/internal/domain"
	"github.com/paveldemidov/flightbook/internal/repository"
)

type CityHandler struct {
	cities repository.CityRepository
}

func NewCityHandler(cities repository.CityRepository) *CityHandler {
	return &CityHandler{cities: cities}
}

func (h *CityHandler) Register(router *gin.RouterGroup, authn, admin gin.HandlerFunc) {
	router.GET("/cities", h.list)
	router.POST("/cities", authn, admin, h.create)
}

func (h *CityHandler) list(c *gin.Context) {
	cities, err := h.cities.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch cities"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cities": cities})
}

type createCityRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *CityHandler) create(c *gin.Context) {
	var req createCityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city name is required"})
		return
	}

	city := &domain.City{Name: req.Name}
	if err := h.cities.Create(c.Request.Context(), city); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "city already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create city"})
		return
	}
	c.JSON(http.StatusCreated, city)
}
