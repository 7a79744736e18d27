// Package web serves the site: pages and HTMX fragments rendered with gin,
// live carousel updates over WebSocket, the contact form and the admin area.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Zachkp/folio/internal/carousel"
	"github.com/Zachkp/folio/internal/catalog"
	"github.com/Zachkp/folio/internal/contact"
	"github.com/Zachkp/folio/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// Deps are the collaborators of the Server.
type Deps struct {
	Catalog   *catalog.Catalog
	Carousels *carousel.Manager
	Store     *store.Store
	Contact   *contact.Service
	Logger    *zap.Logger

	AdminUsername string
	AdminPassword string // empty disables the admin area

	StaticDir string
	ImagesDir string
}

type Server struct {
	engine    *gin.Engine
	tmpl      *template.Template
	catalog   *catalog.Catalog
	carousels *carousel.Manager
	store     *store.Store
	contact   *contact.Service
	logger    *zap.Logger
	tracker   *tracker
	admin     *adminAuth
	upgrader  websocket.Upgrader
}

// New builds the router. Call Run alongside the HTTP server to record
// visits.
func New(d Deps) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	secret, err := randomHex(32)
	if err != nil {
		return nil, err
	}
	salt, err := randomHex(32)
	if err != nil {
		return nil, err
	}

	s := &Server{
		tmpl:      tmpl,
		catalog:   d.Catalog,
		carousels: d.Carousels,
		store:     d.Store,
		contact:   d.Contact,
		logger:    d.Logger,
		tracker:   newTracker(d.Store, salt, d.Logger),
		admin: &adminAuth{
			username: d.AdminUsername,
			password: d.AdminPassword,
			token:    secret,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	r := gin.New()
	r.Use(requestLogger(d.Logger), recovery(d.Logger), s.tracker.middleware())
	r.SetHTMLTemplate(tmpl)
	if d.StaticDir != "" {
		r.Static("/static", d.StaticDir)
	}
	if d.ImagesDir != "" {
		r.Static("/images", d.ImagesDir)
	}

	r.GET("/", s.home)
	r.GET("/projects/:id", s.project)
	r.GET("/privacy", s.privacy)
	r.GET("/healthz", s.healthz)

	r.GET("/contact-form", s.contactForm)
	r.POST("/contact", s.submitContact)

	r.GET("/carousel/:sid", s.carouselState)
	r.GET("/carousel/:sid/ws", s.carouselSocket)
	r.POST("/carousel/:sid/:action", s.carouselCommand)

	s.registerAdmin(r)
	r.NoRoute(s.notFound)

	s.engine = r
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run records tracked visits until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.tracker.run(ctx)
}

// page is the data every full page template receives.
type page struct {
	Title        string
	Site         *catalog.Site
	ReduceMotion bool
	Message      string

	Process  *carouselView
	Services *carouselView
	Gallery  *carouselView
	Project  *catalog.Project
}

func (s *Server) newPage(c *gin.Context, title string) *page {
	return &page{
		Title:        title,
		Site:         s.catalog.Site(),
		ReduceMotion: capabilities(c).ReduceMotion,
	}
}

func (s *Server) home(c *gin.Context) {
	p := s.newPage(c, s.catalog.Site().Owner.Name)
	var err error
	if p.Process, err = s.mount(c, carousel.KindProcess, carousel.Options{}); err != nil {
		s.fail(c, err)
		return
	}
	if p.Services, err = s.mount(c, carousel.KindServices, carousel.Options{}); err != nil {
		s.fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "index.html", p)
}

func (s *Server) project(c *gin.Context) {
	proj, err := s.catalog.Project(c.Param("id"))
	if errors.Is(err, catalog.ErrProjectNotFound) {
		s.notFound(c)
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	p := s.newPage(c, proj.Title)
	p.Project = proj
	p.Gallery, err = s.mount(c, carousel.KindGallery, carousel.Options{
		ProjectID: proj.ID,
		View:      c.Query("view"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "project.html", p)
}

// mount opens a carousel for this visitor and renders its first frame.
func (s *Server) mount(c *gin.Context, kind carousel.Kind, opts carousel.Options) (*carouselView, error) {
	opts.Device = capabilities(c)
	sess, err := s.carousels.Open(kind, opts)
	if err != nil {
		return nil, err
	}
	_, v, err := s.fragment(sess.Snapshot())
	if err != nil {
		s.carousels.Close(sess.ID)
		return nil, err
	}
	return v, nil
}

func (s *Server) privacy(c *gin.Context) {
	c.HTML(http.StatusOK, "privacy.html", s.newPage(c, "Privacy Policy"))
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"carousels": s.carousels.Len(),
		"time":      time.Now().UTC(),
	})
}

func (s *Server) notFound(c *gin.Context) {
	p := s.newPage(c, "Not found")
	p.Message = "Page not found"
	c.HTML(http.StatusNotFound, "not-found.html", p)
}

// fail maps domain errors to a status code and renders an error page.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	p := s.newPage(c, http.StatusText(status))
	p.Message = http.StatusText(status)
	c.HTML(status, "not-found.html", p)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, carousel.ErrSessionNotFound), errors.Is(err, carousel.ErrClosed):
		return http.StatusGone
	case errors.Is(err, catalog.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, carousel.ErrUnknownAction), errors.Is(err, catalog.ErrUnknownView),
		errors.Is(err, carousel.ErrUnknownKind), errors.Is(err, errBadCommand):
		return http.StatusBadRequest
	case errors.Is(err, carousel.ErrTooManySessions), errors.Is(err, carousel.ErrManagerShutdown):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
