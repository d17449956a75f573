package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenWatch/internal/model"
	"tokenWatch/internal/storage"
)

const tokenNotFound = "Token for given name not found."

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// CreatePriceAlertRequest registers an exact target price for a token.
type CreatePriceAlertRequest struct {
	Chain         string `json:"chain" binding:"required"`
	PriceInDollar string `json:"priceInDollar" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
}

// PricePoint is one entry of the price history.
type PricePoint struct {
	Price     string    `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) health(c *gin.Context) {
	data := gin.H{"time": s.now().UTC()}
	if s.tracked != nil {
		data["trackedTokens"] = s.tracked()
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// createPriceAlert handles POST /price-alert/create. The price string is
// stored as given, since alerts match on the exact string.
func (s *Server) createPriceAlert(c *gin.Context) {
	var req CreatePriceAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Message: err.Error()})
		return
	}
	price, err := decimal.NewFromString(req.PriceInDollar)
	if err != nil || !price.IsPositive() {
		c.JSON(http.StatusBadRequest, Response{Message: "priceInDollar must be a positive decimal"})
		return
	}

	token, ok := s.lookupToken(c, req.Chain)
	if !ok {
		return
	}

	created, err := s.store.CreateAlertTarget(c.Request.Context(), model.PriceAlertTarget{
		TokenID: token.ID,
		Price:   req.PriceInDollar,
		Email:   req.Email,
	})
	if err != nil {
		s.logger.Error("create price alert failed", zap.String("chain", req.Chain), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Message: "could not create price alert"})
		return
	}

	s.logger.Info("price alert created", zap.Int64("id", created.ID), zap.String("token", token.Name), zap.String("price", created.Price))
	c.JSON(http.StatusCreated, Response{Success: true, Message: "Price alert created successfully"})
}

// last24hPrices handles GET /token-price/24h/:chain, newest first.
func (s *Server) last24hPrices(c *gin.Context) {
	token, ok := s.lookupToken(c, c.Param("chain"))
	if !ok {
		return
	}

	history, err := s.store.PriceHistory(c.Request.Context(), token.ID, s.now().Add(-24*time.Hour))
	if err != nil {
		s.logger.Error("price history failed", zap.String("token", token.Name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Message: "could not load price history"})
		return
	}

	points := make([]PricePoint, 0, len(history))
	for _, obs := range history {
		points = append(points, PricePoint{Price: obs.Price, CreatedAt: obs.ObservedAt.UTC()})
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: points})
}

func (s *Server) lookupToken(c *gin.Context, name string) (model.Token, bool) {
	token, err := s.store.TokenByName(c.Request.Context(), name)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, Response{Message: tokenNotFound})
		return model.Token{}, false
	}
	if err != nil {
		s.logger.Error("token lookup failed", zap.String("name", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Message: "could not look up token"})
		return model.Token{}, false
	}
	return token, true
}
