package api

import (
	"net/http"

	"stock-insight-backend/internal/database"
	"stock-insight-backend/internal/marketdata"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreatePortfolioRequest represents a request to publish a shared portfolio
type CreatePortfolioRequest struct {
	Name        string                   `json:"name" binding:"required"`
	Description string                   `json:"description"`
	Positions   []PortfolioPositionInput `json:"positions"`
}

type PortfolioPositionInput struct {
	Symbol    string  `json:"symbol" binding:"required"`
	WeightPct float64 `json:"weight_pct"`
	Note      string  `json:"note"`
}

// handleListPortfolios returns every shared portfolio, newest first
func (s *Server) handleListPortfolios(c *gin.Context) {
	ctx := c.Request.Context()

	portfolios, err := s.repo.ListPortfolios(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("portfolio list failed")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to fetch portfolios")
		return
	}
	if portfolios == nil {
		portfolios = []*database.Portfolio{}
	}

	successResponse(c, portfolios)
}

// handleGetPortfolio returns one shared portfolio with its positions
func (s *Server) handleGetPortfolio(c *gin.Context) {
	ctx := c.Request.Context()

	p, err := s.repo.GetPortfolio(ctx, c.Param("id"))
	if err != nil {
		s.logger.Error().Err(err).Msg("portfolio fetch failed")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to fetch portfolio")
		return
	}
	if p == nil {
		errorResponse(c, http.StatusNotFound, "NOT_FOUND", "portfolio not found")
		return
	}

	successResponse(c, p)
}

// handleCreatePortfolio publishes a new shared portfolio owned by the caller
func (s *Server) handleCreatePortfolio(c *gin.Context) {
	ctx := c.Request.Context()
	userID := s.getUserID(c)

	var req CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	positions := make([]database.PortfolioPosition, 0, len(req.Positions))
	for _, in := range req.Positions {
		symbol := marketdata.CleanSymbol(in.Symbol)
		if symbol == "" {
			errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "position symbol is required")
			return
		}
		if in.WeightPct < 0 || in.WeightPct > 100 {
			errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "position weight must be between 0 and 100")
			return
		}
		positions = append(positions, database.PortfolioPosition{
			Symbol:    symbol,
			WeightPct: in.WeightPct,
			Note:      in.Note,
		})
	}

	p := &database.Portfolio{
		ID:          uuid.New().String(),
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		Positions:   positions,
	}
	if err := s.repo.CreatePortfolio(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("portfolio create failed")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create portfolio")
		return
	}

	successResponse(c, p)
}

// handleDeletePortfolio removes a shared portfolio. Only the owner may
// delete it.
func (s *Server) handleDeletePortfolio(c *gin.Context) {
	ctx := c.Request.Context()
	userID := s.getUserID(c)
	portfolioID := c.Param("id")

	p, err := s.repo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		s.logger.Error().Err(err).Msg("portfolio fetch failed")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to fetch portfolio")
		return
	}
	if p == nil {
		errorResponse(c, http.StatusNotFound, "NOT_FOUND", "portfolio not found")
		return
	}
	if p.OwnerID != userID {
		errorResponse(c, http.StatusForbidden, "FORBIDDEN", "only the owner can delete a portfolio")
		return
	}

	if _, err := s.repo.DeletePortfolio(ctx, portfolioID); err != nil {
		s.logger.Error().Err(err).Str("portfolio_id", portfolioID).Msg("portfolio delete failed")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete portfolio")
		return
	}

	successResponse(c, gin.H{"id": portfolioID})
}
