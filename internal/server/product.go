package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/orbit/internal/catalog/domain"
)

type createPriceRequest struct {
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	Interval      string          `json:"interval"`
	IntervalCount int             `json:"interval_count"`
}

type createProductRequest struct {
	Name        string               `json:"name"`
	Description *string              `json:"description"`
	Metadata    map[string]any       `json:"metadata"`
	Prices      []createPriceRequest `json:"prices"`
}

func (s *Server) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	prices := make([]catalogdomain.CreatePriceRequest, 0, len(req.Prices))
	for _, price := range req.Prices {
		prices = append(prices, catalogdomain.CreatePriceRequest{
			Currency:      strings.TrimSpace(price.Currency),
			Amount:        price.Amount,
			Interval:      catalogdomain.PriceInterval(strings.TrimSpace(price.Interval)),
			IntervalCount: price.IntervalCount,
		})
	}

	resp, err := s.catalogSvc.Create(c.Request.Context(), catalogdomain.CreateProductRequest{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Metadata:    req.Metadata,
		Prices:      prices,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListProducts(c *gin.Context) {
	resp, err := s.catalogSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProductByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.catalogSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
