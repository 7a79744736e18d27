package web

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zachkp/folio/internal/store"
)

const adminCookie = "admin_token"

type adminAuth struct {
	username string
	password string
	token    string
}

func (a *adminAuth) enabled() bool { return a.password != "" }

func (a *adminAuth) valid(username, password string) bool {
	if !a.enabled() {
		return false
	}
	u := subtle.ConstantTimeCompare([]byte(username), []byte(a.username))
	p := subtle.ConstantTimeCompare([]byte(password), []byte(a.password))
	return u&p == 1
}

func (a *adminAuth) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || !a.enabled() || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) registerAdmin(r *gin.Engine) {
	r.GET("/admin/login", func(c *gin.Context) {
		data := gin.H{}
		if !s.admin.enabled() {
			data["error"] = "Admin area is disabled"
		}
		c.HTML(http.StatusOK, "admin-login.html", data)
	})
	r.POST("/admin/login", s.adminLogin)
	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", c.Request.TLS != nil, true)
		c.Redirect(http.StatusFound, "/admin/login")
	})

	g := r.Group("/admin", s.admin.middleware())
	g.GET("/dashboard", s.adminDashboard)
	g.GET("/api/stats", s.adminStats)
	g.GET("/visitors", s.adminVisitors)
	g.GET("/messages", s.adminMessages)
	g.DELETE("/messages/:id", s.adminDeleteMessage)
	g.GET("/export/stats", s.adminExport)
	g.POST("/privacy/cleanup", s.adminCleanup)
}

func (s *Server) adminLogin(c *gin.Context) {
	who := s.tracker.hashIP(c.ClientIP())
	if !s.admin.valid(c.PostForm("username"), c.PostForm("password")) {
		s.logger.Warn("admin login failed", zap.String("client", who))
		c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{"error": "Invalid credentials"})
		return
	}
	c.SetCookie(adminCookie, s.admin.token, 3600*24, "/admin", "", c.Request.TLS != nil, true)
	s.logger.Info("admin login", zap.String("client", who))
	c.Redirect(http.StatusFound, "/admin/dashboard")
}

func (s *Server) adminDashboard(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("load admin stats", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Failed to load statistics"})
		return
	}
	c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
		"stats": stats,
		"live":  s.carousels.Len(),
	})
}

func (s *Server) adminStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) adminVisitors(c *gin.Context) {
	visitors, err := s.store.RecentVisitors(c.Request.Context(), 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, visitors)
}

func (s *Server) adminMessages(c *gin.Context) {
	messages, err := s.store.Messages(c.Request.Context(), 200)
	if err != nil {
		s.logger.Error("load messages", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Failed to load enquiries"})
		return
	}
	c.HTML(http.StatusOK, "admin-messages.html", gin.H{"messages": messages})
}

func (s *Server) adminDeleteMessage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	switch err := s.store.DeleteMessage(c.Request.Context(), id); {
	case err == nil:
		s.logger.Info("enquiry deleted", zap.Int64("id", id))
		c.JSON(http.StatusOK, gin.H{"message": "Enquiry deleted"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Enquiry not found"})
	default:
		s.logger.Error("delete enquiry", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete enquiry"})
	}
}

func (s *Server) adminExport(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
	c.JSON(http.StatusOK, stats)
}

func (s *Server) adminCleanup(c *gin.Context) {
	ctx := c.Request.Context()
	n, err := s.store.PruneVisitors(ctx, store.Retention)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	events, err := s.store.PruneCarouselEvents(ctx, store.EventRetention)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info("privacy cleanup", zap.Int64("removed", n), zap.Int64("events_removed", events))
	c.JSON(http.StatusOK, gin.H{"removed": n, "events_removed": events})
}
