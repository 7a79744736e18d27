package device

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    Capabilities
	}{
		{
			name:    "desktop chrome",
			headers: map[string]string{"User-Agent": "Mozilla/5.0 (X11; Linux x86_64) Chrome/126.0"},
			want:    Capabilities{},
		},
		{
			name:    "iphone",
			headers: map[string]string{"User-Agent": "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"},
			want:    Capabilities{Mobile: true, Touch: true},
		},
		{
			name: "client hint overrides user agent",
			headers: map[string]string{
				"User-Agent":       "Mozilla/5.0 (Linux; Android 14)",
				"Sec-CH-UA-Mobile": "?0",
			},
			want: Capabilities{},
		},
		{
			name: "reduced motion",
			headers: map[string]string{
				"Sec-CH-UA-Mobile":              "?1",
				"Sec-CH-Prefers-Reduced-Motion": "reduce",
			},
			want: Capabilities{Mobile: true, Touch: true, ReduceMotion: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, Detect(h))
		})
	}
}

func TestHoverPauseOnlyOnDesktop(t *testing.T) {
	assert.True(t, Capabilities{}.HoverPause())
	assert.False(t, Capabilities{Mobile: true, Touch: true}.HoverPause())
	assert.Equal(t, TypeMobile, Capabilities{Mobile: true}.Type())
	assert.Equal(t, TypeDesktop, Capabilities{}.Type())
}
