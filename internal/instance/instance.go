// Package instance manages named, user-configured copies of plugins and their
// durable settings.
package instance

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no instance with the requested ID exists.
var ErrNotFound = errors.New("instance not found")

// Instance is one configured usage of a plugin. Instances are owned by the
// Store; slot entries reference them by ID and never own them.
type Instance struct {
	ID        string         `json:"id"`
	PluginID  string         `json:"plugin_id"`
	Name      string         `json:"name"`
	Settings  map[string]any `json:"settings"`
	Enabled   bool           `json:"enabled"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// clone returns a copy safe to hand out to callers.
func (i *Instance) clone() *Instance {
	cp := *i
	cp.Settings = make(map[string]any, len(i.Settings))
	for k, v := range i.Settings {
		cp.Settings[k] = v
	}
	return &cp
}
