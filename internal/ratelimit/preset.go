package ratelimit

import (
	"fmt"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/config"
)

// Preset names a (maxRequests, window) pair applied to a class of routes.
// Routes reference presets by constant, so an unknown preset is a programmer
// error caught at the registry, not a silent default.
type Preset string

const (
	// Auth endpoints: login, register, password reset
	PresetAuth Preset = "auth"
	// Standard API endpoints
	PresetAPI Preset = "api"
	// File upload endpoints
	PresetUpload Preset = "upload"
	// Public form endpoints - magic links, signing
	PresetPublicForm Preset = "public_form"
	// Admin API endpoints
	PresetAdmin Preset = "admin"
	// Sensitive operations - token verify, password change
	PresetSensitive Preset = "sensitive"
	// AI feature endpoints - expensive upstream calls
	PresetAIHeavy Preset = "ai_heavy"
)

type Limits struct {
	MaxRequests int
	Window      time.Duration
}

var ErrUnknownPreset = fmt.Errorf("unknown rate limit preset")

// Registry is the static preset table, loaded once at process start.
// No mutation at runtime; adding a preset is a configuration change.
type Registry struct {
	presets map[Preset]Limits
}

func defaultPresets() map[Preset]Limits {
	return map[Preset]Limits{
		PresetAuth:       {MaxRequests: 5, Window: time.Minute},
		PresetAPI:        {MaxRequests: 60, Window: time.Minute},
		PresetUpload:     {MaxRequests: 10, Window: time.Minute},
		PresetPublicForm: {MaxRequests: 20, Window: time.Minute},
		PresetAdmin:      {MaxRequests: 120, Window: time.Minute},
		PresetSensitive:  {MaxRequests: 3, Window: time.Minute},
		PresetAIHeavy:    {MaxRequests: 10, Window: time.Minute},
	}
}

// NewRegistry builds the preset table, applying any config overrides on top
// of the defaults. Overrides for unknown presets or with non-positive values
// are rejected.
func NewRegistry(overrides []config.RateLimitConfig) (*Registry, error) {
	presets := defaultPresets()

	for _, o := range overrides {
		p := Preset(o.Preset)
		limits, ok := presets[p]
		if !ok {
			return nil, fmt.Errorf("%w: %q in rate_limits config", ErrUnknownPreset, o.Preset)
		}
		if o.MaxRequests > 0 {
			limits.MaxRequests = o.MaxRequests
		}
		if o.WindowSeconds > 0 {
			limits.Window = time.Duration(o.WindowSeconds) * time.Second
		}
		if o.MaxRequests < 0 || o.WindowSeconds < 0 {
			return nil, fmt.Errorf("rate_limits override for %q must be positive", o.Preset)
		}
		presets[p] = limits
	}

	return &Registry{presets: presets}, nil
}

func (r *Registry) Lookup(p Preset) (Limits, error) {
	limits, ok := r.presets[p]
	if !ok {
		return Limits{}, fmt.Errorf("%w: %q", ErrUnknownPreset, p)
	}
	return limits, nil
}
