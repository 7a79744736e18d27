// Package contact handles enquiries from the contact form.
package contact

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Zachkp/folio/internal/store"
)

// ProjectTypes are the choices offered by the form.
var ProjectTypes = []string{"Website", "Catalog", "Hosting", "Other"}

// Form is the contact form as posted by the page. Binding tags are enforced
// by gin's validator.
type Form struct {
	Name         string `form:"name" binding:"required,max=120"`
	BusinessName string `form:"businessName" binding:"max=120"`
	Email        string `form:"email" binding:"required,email,max=254"`
	WhatsApp     string `form:"whatsapp" binding:"max=32"`
	ProjectType  string `form:"projectType" binding:"omitempty,oneof=Website Catalog Hosting Other"`
	Message      string `form:"message" binding:"required,max=5000"`
}

// Normalize trims whitespace and defaults the project type.
func (f *Form) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.BusinessName = strings.TrimSpace(f.BusinessName)
	f.Email = strings.TrimSpace(f.Email)
	f.WhatsApp = strings.TrimSpace(f.WhatsApp)
	f.Message = strings.TrimSpace(f.Message)
	if f.ProjectType == "" {
		f.ProjectType = ProjectTypes[0]
	}
}

// Saver stores enquiries.
type Saver interface {
	SaveContact(ctx context.Context, m store.ContactMessage) (int64, error)
}

// Notifier tells the site owner about a new enquiry.
type Notifier interface {
	Notify(ctx context.Context, m store.ContactMessage) error
}

type Service struct {
	saver    Saver
	notifier Notifier
	logger   *zap.Logger
}

// NewService wires the contact flow. notifier may be nil.
func NewService(saver Saver, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{saver: saver, notifier: notifier, logger: logger}
}

// Submit stores the enquiry and notifies the owner. A failed notification is
// logged but does not fail the submission once the enquiry is stored.
func (s *Service) Submit(ctx context.Context, f Form) (int64, error) {
	f.Normalize()
	m := store.ContactMessage{
		Name:         f.Name,
		BusinessName: f.BusinessName,
		Email:        f.Email,
		WhatsApp:     f.WhatsApp,
		ProjectType:  f.ProjectType,
		Message:      f.Message,
	}

	id, err := s.saver.SaveContact(ctx, m)
	if err != nil {
		return 0, fmt.Errorf("submit contact: %w", err)
	}
	m.ID = id
	s.logger.Info("contact enquiry received", zap.Int64("id", id), zap.String("project_type", m.ProjectType))

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, m); err != nil {
			s.logger.Warn("contact notification failed", zap.Int64("id", id), zap.Error(err))
		}
	}
	return id, nil
}
