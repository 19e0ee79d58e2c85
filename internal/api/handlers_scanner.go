package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleScannerResults returns the most recent watchlist scan, ranked by
// buy score
func (s *Server) handleScannerResults(c *gin.Context) {
	result := s.scanner.GetLastResult()
	if result == nil {
		errorResponse(c, http.StatusNotFound, "NOT_FOUND", "no scan has completed yet")
		return
	}

	successResponse(c, result)
}

// handleScannerRefresh triggers a scan outside the regular interval. The
// scan itself guards against overlap, so a racing second refresh is a no-op.
func (s *Server) handleScannerRefresh(c *gin.Context) {
	if s.scanner.Scanning() {
		errorResponse(c, http.StatusConflict, "SCAN_IN_PROGRESS", "a scan is already running")
		return
	}

	go s.scanner.Scan()

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "scan started",
	})
}
