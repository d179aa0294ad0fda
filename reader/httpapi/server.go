package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"signalflow/admission"
	appconfig "signalflow/config"
	"signalflow/logger"
	"signalflow/models"
	"signalflow/queue"
)

// Server exposes the candidate submission API. Handlers only run
// admission; the heavy work happens in the processor.
type Server struct {
	config *appconfig.Config
	filter *admission.Filter
	queue  *queue.Queue
	srv    *http.Server
	log    *logger.Log
}

type pushRequest struct {
	TokenAddress string `json:"token_address"`
	Chain        string `json:"chain"`
}

// Pointer fields distinguish an absent premium field from a zero value.
type premiumPushRequest struct {
	TokenAddress string   `json:"token_address"`
	Chain        string   `json:"chain"`
	TierHint     *int     `json:"tier_hint"`
	OpenTime     *int64   `json:"open_time"`
	Price        *float64 `json:"price"`
}

func NewServer(cfg *appconfig.Config, filter *admission.Filter, q *queue.Queue) *Server {
	return &Server{
		config: cfg,
		filter: filter,
		queue:  q,
		log:    logger.GetLogger(),
	}
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/push", s.handlePush)
	router.POST("/push/premium", s.handlePremiumPush)
	router.GET("/queue/status", s.handleQueueStatus)
	return router
}

func (s *Server) Start(ctx context.Context) error {
	log := s.log.WithComponent("httpapi").WithFields(logger.Fields{"operation": "start"})

	s.srv = &http.Server{
		Addr:         s.config.API.Address,
		Handler:      s.routes(),
		ReadTimeout:  s.config.API.ReadTimeout,
		WriteTimeout: s.config.API.WriteTimeout,
	}

	go func() {
		log.WithFields(logger.Fields{"address": s.config.API.Address}).Info("http api listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http api server failed")
		}
	}()
	return nil
}

func (s *Server) Stop() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.WithComponent("httpapi").WithError(err).Warn("http api shutdown failed")
	}
	s.log.WithComponent("httpapi").Info("http api stopped")
}

func (s *Server) allowedChain(chain string) bool {
	for _, c := range s.config.API.AllowedChains {
		if strings.EqualFold(c, chain) {
			return true
		}
	}
	return false
}

func (s *Server) handlePush(c *gin.Context) {
	var req pushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.TokenAddress) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token_address is required"})
		return
	}
	if !s.allowedChain(req.Chain) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported chain %q", req.Chain)})
		return
	}

	decision := s.filter.Admit(c.Request.Context(), models.Candidate{
		Kind:         models.KindNormal,
		TokenAddress: strings.TrimSpace(req.TokenAddress),
		Chain:        strings.ToUpper(req.Chain),
	})
	c.JSON(http.StatusOK, gin.H{"accepted": decision.Accepted, "reason": decision.Reason})
}

func (s *Server) handlePremiumPush(c *gin.Context) {
	var req premiumPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.TokenAddress) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token_address is required"})
		return
	}
	if !s.allowedChain(req.Chain) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported chain %q", req.Chain)})
		return
	}
	if req.TierHint == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tier_hint is required"})
		return
	}
	if *req.TierHint <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tier_hint must be greater than 0"})
		return
	}
	if req.OpenTime == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open_time is required"})
		return
	}
	if req.Price == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price is required"})
		return
	}

	var openTime time.Time
	if *req.OpenTime > 0 {
		openTime = time.Unix(*req.OpenTime, 0)
	}

	decision := s.filter.Admit(c.Request.Context(), models.Candidate{
		Kind:          models.KindPremium,
		TokenAddress:  strings.TrimSpace(req.TokenAddress),
		Chain:         strings.ToUpper(req.Chain),
		TierHint:      *req.TierHint,
		ObservedPrice: *req.Price,
		OpenTime:      openTime,
	})
	c.JSON(http.StatusOK, gin.H{"accepted": decision.Accepted, "reason": decision.Reason})
}

func (s *Server) handleQueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"queue_size":      s.queue.Len(),
		"processed_count": s.queue.Processed(),
	})
}
