// Package device resolves what the requesting browser can do from request
// headers, so carousels are configured per visitor instead of sniffing a
// global environment.
package device

import (
	"net/http"
	"regexp"
	"strings"
)

var mobileUA = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)

// Type is the coarse layout class.
type Type string

const (
	TypeDesktop Type = "desktop"
	TypeMobile  Type = "mobile"
)

// Capabilities of one visitor's browser.
type Capabilities struct {
	Mobile       bool
	Touch        bool
	ReduceMotion bool
}

// Type returns the layout class implied by c.
func (c Capabilities) Type() Type {
	if c.Mobile {
		return TypeMobile
	}
	return TypeDesktop
}

// HoverPause reports whether pointer hover should pause autoplay. Touch
// screens have no hover, so only desktop pointers qualify.
func (c Capabilities) HoverPause() bool {
	return !c.Mobile && !c.Touch
}

// Detect reads capabilities from the User-Agent and client hint headers.
// Sec-CH-UA-Mobile wins over User-Agent sniffing when present.
func Detect(h http.Header) Capabilities {
	var c Capabilities

	switch h.Get("Sec-CH-UA-Mobile") {
	case "?1":
		c.Mobile = true
	case "?0":
		c.Mobile = false
	default:
		c.Mobile = mobileUA.MatchString(h.Get("User-Agent"))
	}
	c.Touch = c.Mobile

	c.ReduceMotion = strings.EqualFold(h.Get("Sec-CH-Prefers-Reduced-Motion"), "reduce")
	return c
}
