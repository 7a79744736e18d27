package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zachkp/folio/internal/contact"
)

type contactData struct {
	Form         contact.Form
	ProjectTypes []string
	Error        string
	Success      string
}

func (s *Server) contactForm(c *gin.Context) {
	c.HTML(http.StatusOK, "contact.html", contactData{ProjectTypes: contact.ProjectTypes})
}

// submitContact answers with a fragment in every case; htmx only swaps 2xx
// responses.
func (s *Server) submitContact(c *gin.Context) {
	var f contact.Form
	if err := c.ShouldBind(&f); err != nil {
		s.logger.Debug("contact form rejected", zap.Error(err))
		c.HTML(http.StatusOK, "contact.html", contactData{
			Form:         f,
			ProjectTypes: contact.ProjectTypes,
			Error:        "Please fill in your name, a valid email address and a message.",
		})
		return
	}

	if _, err := s.contact.Submit(c.Request.Context(), f); err != nil {
		s.logger.Error("contact submit", zap.Error(err))
		c.HTML(http.StatusOK, "contact-error.html", contactData{
			Error: "Sorry, there was an error sending your message. Please try again later.",
		})
		return
	}
	c.HTML(http.StatusOK, "contact-success.html", contactData{
		Success: "Thank you for your message! I'll get back to you soon.",
	})
}
