// Package httpapi serves health, metrics and read-only debug views of the
// scheduler.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"governance_reminder_bot/internal/domain/reminder"
	"governance_reminder_bot/internal/infra/watcher"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type JobView interface {
	Snapshot(key reminder.JobKey) []reminder.Job
	RecipientJobs(recipientID int64) []reminder.Job
	Len() int
}

type WatcherView interface {
	Status() watcher.Status
}

type jobResponse struct {
	ProposalID  string    `json:"proposal_id"`
	RecipientID int64     `json:"recipient_id"`
	FireAt      time.Time `json:"fire_at"`
	Origin      string    `json:"origin"`
	Trigger     string    `json:"trigger"`
	Hours       float64   `json:"hours"`
}

func NewRouter(jobs JobView, watchers []WatcherView) *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery())

	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "pending_jobs": jobs.Len()})
	})
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	debug := g.Group("/debug")
	debug.GET("/jobs", func(c *gin.Context) {
		recipientID, err := strconv.ParseInt(c.Query("recipient_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_id must be an integer"})
			return
		}
		var list []reminder.Job
		if proposalID := c.Query("proposal_id"); proposalID != "" {
			list = jobs.Snapshot(reminder.JobKey{ProposalID: proposalID, RecipientID: recipientID})
		} else {
			list = jobs.RecipientJobs(recipientID)
		}
		out := make([]jobResponse, 0, len(list))
		for _, j := range list {
			out = append(out, jobResponse{
				ProposalID:  j.Key.ProposalID,
				RecipientID: j.Key.RecipientID,
				FireAt:      j.FireAt.UTC(),
				Origin:      string(j.Origin),
				Trigger:     string(j.Trigger.Kind),
				Hours:       j.Trigger.Hours,
			})
		}
		c.JSON(http.StatusOK, gin.H{"jobs": out})
	})
	debug.GET("/watchers", func(c *gin.Context) {
		out := make([]watcher.Status, 0, len(watchers))
		for _, w := range watchers {
			out = append(out, w.Status())
		}
		c.JSON(http.StatusOK, gin.H{"watchers": out})
	})
	return g
}

// Server runs the diagnostics router until Shutdown.
type Server struct {
	srv    *http.Server
	logger *logrus.Entry
}

func NewServer(addr string, handler http.Handler, logger *logrus.Entry) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Start() {
	go func() {
		s.logger.WithField("addr", s.srv.Addr).Info("Diagnostics server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Diagnostics server stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
