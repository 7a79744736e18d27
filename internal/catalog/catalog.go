// Package catalog holds the static content of the site: copy for each
// section, the project showcase and the tuning of every carousel.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

//go:embed content/site.yaml
var defaultContent []byte

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrUnknownView     = errors.New("unknown view mode")
)

// View selects which screenshot set of a project is shown.
type View string

const (
	Desktop View = "desktop"
	Mobile  View = "mobile"
)

// ParseView accepts "desktop" and "mobile". An empty string means Desktop.
func ParseView(s string) (View, error) {
	switch View(s) {
	case "", Desktop:
		return Desktop, nil
	case Mobile:
		return Mobile, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

type Site struct {
	Owner     Owner               `yaml:"owner"`
	Hero      Hero                `yaml:"hero"`
	Services  []Service           `yaml:"services"`
	Process   []Step              `yaml:"process"`
	USPs      []USP               `yaml:"usps"`
	About     About               `yaml:"about"`
	Carousels map[string]Carousel `yaml:"carousels"`
	Projects  []Project           `yaml:"projects"`
}

type Owner struct {
	Name     string `yaml:"name"`
	Title    string `yaml:"title"`
	Email    string `yaml:"email"`
	WhatsApp string `yaml:"whatsapp"`
}

type Hero struct {
	Badge      string   `yaml:"badge"`
	Headline   string   `yaml:"headline"`
	Subline    string   `yaml:"subline"`
	Highlights []string `yaml:"highlights"`
}

type Service struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Points      []string `yaml:"points"`
}

// Step is one stop on the process wheel.
type Step struct {
	Number      string `yaml:"number"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type USP struct {
	Title string `yaml:"title"`
	Text  string `yaml:"text"`
}

type About struct {
	Heading    string   `yaml:"heading"`
	Tagline    string   `yaml:"tagline"`
	Paragraphs []string `yaml:"paragraphs"`
}

// Carousel tunes one kind of carousel. Durations are in milliseconds.
type Carousel struct {
	AutoplayMS    int     `yaml:"autoplay_ms"`
	SwipeDistance float64 `yaml:"swipe_distance"`
	SwipeVelocity float64 `yaml:"swipe_velocity"`
	Policy        string  `yaml:"policy"`
	ResumeDelayMS int     `yaml:"resume_delay_ms"`
	HoverPause    bool    `yaml:"hover_pause"`
	Clamp         bool    `yaml:"clamp"`
}

type Project struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Subtitle     string   `yaml:"subtitle"`
	Role         string   `yaml:"role"`
	Description  string   `yaml:"description"`
	Tags         []string `yaml:"tags"`
	Link         string   `yaml:"link"`
	LinkText     string   `yaml:"link_text"`
	Domain       string   `yaml:"domain"`
	Logo         string   `yaml:"logo"`
	DesktopImage string   `yaml:"desktop_image"`
	MobileImage  string   `yaml:"mobile_image"`
	Details      Details  `yaml:"details"`
}

type Details struct {
	Challenge          string    `yaml:"challenge"`
	Solution           string    `yaml:"solution"`
	Impact             string    `yaml:"impact"`
	Features           []Feature `yaml:"features"`
	DesktopScreenshots []string  `yaml:"desktop_screenshots"`
	MobileScreenshots  []string  `yaml:"mobile_screenshots"`
}

type Feature struct {
	Title string `yaml:"title"`
	Desc  string `yaml:"desc"`
}

// Screenshots returns the screenshot list for view.
func (p *Project) Screenshots(view View) []string {
	if view == Mobile {
		return p.Details.MobileScreenshots
	}
	return p.Details.DesktopScreenshots
}

// Parse decodes and validates site content. Unknown keys are rejected so a
// typo in a content file fails loudly instead of silently dropping copy.
func Parse(data []byte) (*Site, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Site
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseFile reads and parses a content file.
func ParseFile(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return Parse(data)
}

// Default returns the content compiled into the binary.
func Default() *Site {
	s, err := Parse(defaultContent)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded content is invalid: %v", err))
	}
	return s
}

// DefaultContent returns a copy of the embedded YAML.
func DefaultContent() []byte {
	return bytes.Clone(defaultContent)
}

func (s *Site) validate() error {
	seen := make(map[string]bool, len(s.Projects))
	for i, p := range s.Projects {
		if p.ID == "" {
			return fmt.Errorf("project #%d: missing id", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("project %q: duplicate id", p.ID)
		}
		seen[p.ID] = true
	}
	for name, c := range s.Carousels {
		if c.AutoplayMS < 0 || c.ResumeDelayMS < 0 {
			return fmt.Errorf("carousel %q: negative duration", name)
		}
		switch c.Policy {
		case "", "distance", "distance-or-velocity", "confidence":
		default:
			return fmt.Errorf("carousel %q: unknown policy %q", name, c.Policy)
		}
	}
	return nil
}

// Catalog serves the current Site to concurrent readers and lets a watcher
// swap in new content.
type Catalog struct {
	site atomic.Pointer[Site]
}

// New returns a catalog serving s.
func New(s *Site) *Catalog {
	c := &Catalog{}
	c.site.Store(s)
	return c
}

// Site returns the current content. Callers must not modify it.
func (c *Catalog) Site() *Site { return c.site.Load() }

// Replace swaps in new content.
func (c *Catalog) Replace(s *Site) { c.site.Store(s) }

// Projects lists the showcase in display order.
func (c *Catalog) Projects() []Project { return c.Site().Projects }

// Project looks a project up by id.
func (c *Catalog) Project(id string) (*Project, error) {
	ps := c.Site().Projects
	for i := range ps {
		if ps[i].ID == id {
			return &ps[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, id)
}

// Screenshots returns a project's screenshots for the named view mode.
func (c *Catalog) Screenshots(id, view string) ([]string, error) {
	v, err := ParseView(view)
	if err != nil {
		return nil, err
	}
	p, err := c.Project(id)
	if err != nil {
		return nil, err
	}
	return p.Screenshots(v), nil
}

// Carousel returns the tuning for kind; ok is false when none is configured.
func (c *Catalog) Carousel(kind string) (Carousel, bool) {
	t, ok := c.Site().Carousels[kind]
	return t, ok
}
