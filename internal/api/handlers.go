package api

import (
	"context"
	"net/http"
	"time"

	"smart-trading-engine/internal/auth"
	"smart-trading-engine/internal/database"
	"smart-trading-engine/internal/engine"
	"smart-trading-engine/internal/market"

	"github.com/gin-gonic/gin"
)

// ==================== HEALTH ====================

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	}
	if s.repo != nil {
		if err := s.repo.HealthCheck(c.Request.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}

// ==================== AUTH ====================

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.loginLimiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user store unavailable"})
		return
	}

	user, err := s.repo.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		s.logger.Error("login lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if user == nil || !s.password.VerifyPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.jwt.GenerateAccessToken(auth.UserClaims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// ==================== ANALYSIS ====================

type entryRequest struct {
	Symbol  string          `json:"symbol"`
	Candles []market.Candle `json:"candles" binding:"required"`
}

func (s *Server) handleAnalyzeEntry(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "candles are required"})
		return
	}

	signal := s.entry.Analyze(req.Candles)
	s.hub.BroadcastSignal("entry_signal", req.Symbol, signal)

	c.JSON(http.StatusOK, signal)
}

type exitRequest struct {
	Position     market.OpenPosition `json:"position" binding:"required"`
	CurrentPrice float64             `json:"current_price" binding:"required"`
	Candles      []market.Candle     `json:"candles"`
	EntrySignal  *engine.EntrySignal `json:"entry_signal"`
}

func (s *Server) handleAnalyzeExit(c *gin.Context) {
	var req exitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position and current_price are required"})
		return
	}

	s.restoreTrailingState(c.Request.Context(), req.Position)
	signal := s.exit.ShouldExit(req.Position, req.CurrentPrice, req.Candles, req.EntrySignal)
	s.syncTrailingState(c, req.Position, signal.Action)
	s.hub.BroadcastSignal("exit_signal", req.Position.Symbol, signal)

	c.JSON(http.StatusOK, signal)
}

// restoreTrailingState seeds the trailing manager from the persisted stop
// before an exit pass. Only positions with no in-memory state are seeded:
// live state is always at least as tight as the last snapshot.
func (s *Server) restoreTrailingState(ctx context.Context, position market.OpenPosition) {
	if s.trailingStore == nil || s.trailing == nil {
		return
	}
	if _, ok := s.trailing.Level(position.ID); ok {
		return
	}

	state, err := s.trailingStore.LoadTrailingState(ctx, position.ID)
	if err != nil {
		s.logger.Warn("failed to load trailing state", "position_id", position.ID, "error", err)
		return
	}
	if state != nil {
		s.trailing.Seed(position, state.StopLevel)
	}
}

// syncTrailingState mirrors the in-memory trailing stop to Redis so a
// restart does not loosen an already-tightened stop.
func (s *Server) syncTrailingState(c *gin.Context, position market.OpenPosition, action engine.Action) {
	if s.trailingStore == nil || s.trailing == nil {
		return
	}
	ctx := c.Request.Context()

	if action == engine.ActionClose {
		if err := s.trailingStore.DeleteTrailingState(ctx, position.ID); err != nil {
			s.logger.Warn("failed to delete trailing state", "position_id", position.ID, "error", err)
		}
		return
	}

	level, ok := s.trailing.Level(position.ID)
	if !ok {
		return
	}
	state := &database.TrailingState{
		PositionID: position.ID,
		StopLevel:  level,
		SavedAt:    time.Now().UTC(),
	}
	if err := s.trailingStore.SaveTrailingState(ctx, state); err != nil {
		s.logger.Warn("failed to save trailing state", "position_id", position.ID, "error", err)
	}
}

// ==================== TRADES ====================

func (s *Server) handleRecordTrade(c *gin.Context) {
	var trade market.TradeRecord
	if err := c.ShouldBindJSON(&trade); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trade record"})
		return
	}
	if trade.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	if trade.Timestamp.IsZero() {
		trade.Timestamp = time.Now().UTC()
	}

	s.entry.AddTrade(trade)

	upgrade, err := s.monitor.AddTrade(c.Request.Context(), trade)
	if err != nil {
		s.logger.Error("failed to record trade", "symbol", trade.Symbol, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record trade"})
		return
	}

	if s.repo != nil {
		if err := s.repo.SaveTrade(c.Request.Context(), trade); err != nil {
			// State is already updated in memory; persistence failure is
			// reported but does not reject the trade.
			s.logger.Error("failed to persist trade", "symbol", trade.Symbol, "error", err)
		}
	}

	resp := gin.H{"recorded": true}
	if upgrade != nil {
		resp["tier_upgrade"] = upgrade
		s.hub.BroadcastSignal("tier_upgrade", trade.Symbol, upgrade)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListTrades(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusOK, gin.H{"trades": s.entry.History()})
		return
	}
	trades, err := s.repo.ListTrades(c.Request.Context(), 100)
	if err != nil {
		s.logger.Error("failed to list trades", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list trades"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

type balanceRequest struct {
	Balance float64 `json:"balance" binding:"required"`
}

func (s *Server) handleUpdateBalance(c *gin.Context) {
	var req balanceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Balance <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "positive balance is required"})
		return
	}

	upgrade, err := s.monitor.UpdateBalance(c.Request.Context(), req.Balance)
	if err != nil {
		s.logger.Error("failed to update balance", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update balance"})
		return
	}

	resp := gin.H{"updated": true}
	if upgrade != nil {
		resp["tier_upgrade"] = upgrade
		s.hub.BroadcastSignal("tier_upgrade", "", upgrade)
	}
	c.JSON(http.StatusOK, resp)
}

// ==================== PERFORMANCE ====================

func (s *Server) handlePerformanceStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.CurrentStatus())
}

func (s *Server) handlePerformanceMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.Metrics())
}

// ==================== SESSION ====================

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"adjustment": s.sess.AdjustmentFactor(),
		"quality":    s.sess.SessionQuality(),
		"weekend":    s.sess.WeekendApproaching(),
	})
}

// ==================== SIZING ====================

type sizingRequest struct {
	Symbol          string  `json:"symbol" binding:"required"`
	Balance         float64 `json:"balance" binding:"required"`
	ConfidenceScore float64 `json:"confidence_score"`
	Volatility      float64 `json:"volatility"`
}

func (s *Server) handlePositionSize(c *gin.Context) {
	var req sizingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Balance <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and positive balance are required"})
		return
	}

	stats := s.kelly.UpdatePerformance(s.entry.History())
	size := s.kelly.CalculatePositionSize(req.Symbol, req.Balance, stats.KellyPercentage, req.ConfidenceScore, req.Volatility)

	c.JSON(http.StatusOK, gin.H{
		"stats": stats,
		"size":  size,
	})
}
