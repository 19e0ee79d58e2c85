package api

import (
	"net/http"

	"stock-insight-backend/internal/database"
	"stock-insight-backend/internal/marketdata"

	"github.com/gin-gonic/gin"
)

// AddToWatchlistRequest represents a request to add a symbol to the watchlist
type AddToWatchlistRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Note   string `json:"note"`
}

// handleGetWatchlist returns the authenticated user's watchlist
func (s *Server) handleGetWatchlist(c *gin.Context) {
	ctx := c.Request.Context()
	userID := s.getUserID(c)

	items, err := s.repo.ListWatchlist(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("watchlist fetch failed")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to fetch watchlist")
		return
	}
	if items == nil {
		items = []*database.WatchlistItem{}
	}

	successResponse(c, items)
}

// handleAddToWatchlist adds a symbol to the user's watchlist. Re-adding an
// existing symbol just updates its note.
func (s *Server) handleAddToWatchlist(c *gin.Context) {
	ctx := c.Request.Context()
	userID := s.getUserID(c)

	var req AddToWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	symbol := marketdata.CleanSymbol(req.Symbol)
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "symbol is required")
		return
	}

	item := &database.WatchlistItem{
		UserID: userID,
		Symbol: symbol,
		Note:   req.Note,
	}
	if err := s.repo.AddWatchlistItem(ctx, item); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("symbol", symbol).Msg("watchlist add failed")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to add to watchlist")
		return
	}

	s.bus.PublishWatchlistAdded(userID, symbol)
	successResponse(c, item)
}

// handleRemoveFromWatchlist removes one symbol from the user's watchlist
func (s *Server) handleRemoveFromWatchlist(c *gin.Context) {
	ctx := c.Request.Context()
	userID := s.getUserID(c)

	symbol := marketdata.CleanSymbol(c.Param("symbol"))
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "symbol is required")
		return
	}

	removed, err := s.repo.RemoveWatchlistItem(ctx, userID, symbol)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("symbol", symbol).Msg("watchlist remove failed")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to remove from watchlist")
		return
	}
	if !removed {
		errorResponse(c, http.StatusNotFound, "NOT_FOUND", "symbol not in watchlist")
		return
	}

	s.bus.PublishWatchlistRemoved(userID, symbol)
	successResponse(c, gin.H{"symbol": symbol})
}
