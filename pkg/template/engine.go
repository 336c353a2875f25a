package template

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aymerick/raymond"
)

// Mode selects how interpolated values are written.
type Mode int

const (
	// HTML escapes every {{expr}} value, for email bodies.
	HTML Mode = iota
	// Text writes values verbatim, for recipients, subjects, SMS and webhook payloads.
	Text
)

type cacheKey struct {
	mode   Mode
	source string
}

// Engine renders Handlebars message templates. Compiled templates are cached by mode and source.
type Engine struct {
	cache map[cacheKey]*raymond.Template
	mu    sync.RWMutex
}

func NewEngine() *Engine {
	return &Engine{cache: make(map[cacheKey]*raymond.Template)}
}

// Render executes source with HTML escaping.
func (e *Engine) Render(source string, data interface{}) (string, error) {
	return e.RenderMode(HTML, source, data)
}

// RenderText executes source without escaping.
func (e *Engine) RenderText(source string, data interface{}) (string, error) {
	return e.RenderMode(Text, source, data)
}

func (e *Engine) RenderMode(mode Mode, source string, data interface{}) (string, error) {
	if source == "" {
		return "", nil
	}

	tmpl, err := e.template(mode, source)
	if err != nil {
		return "", err
	}

	if mode == Text {
		data = verbatim(data)
	}
	result, err := tmpl.Exec(data)
	if err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return result, nil
}

func (e *Engine) template(mode Mode, source string) (*raymond.Template, error) {
	key := cacheKey{mode: mode, source: source}

	e.mu.RLock()
	tmpl, ok := e.cache[key]
	e.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.cache[key]; ok {
		return tmpl, nil
	}

	tmpl, err := raymond.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	tmpl.RegisterHelpers(helpers(mode))
	e.cache[key] = tmpl
	return tmpl, nil
}

func (e *Engine) Validate(source string) error {
	if _, err := raymond.Parse(source); err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return nil
}

// Retain drops every compiled template whose source is not in keep.
func (e *Engine) Retain(keep map[string]struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.cache {
		if _, ok := keep[key.source]; !ok {
			delete(e.cache, key)
		}
	}
}

// Size reports the number of compiled templates held.
func (e *Engine) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// verbatim marks every string in data as safe so raymond writes it unescaped.
func verbatim(data interface{}) interface{} {
	switch v := data.(type) {
	case string:
		return raymond.SafeString(v)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = verbatim(item)
		}
		return out
	case map[string]string:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = raymond.SafeString(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = verbatim(item)
		}
		return out
	case []string:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = raymond.SafeString(item)
		}
		return out
	}
	return data
}

func helpers(mode Mode) map[string]interface{} {
	out := func(s string) interface{} {
		if mode == Text {
			return raymond.SafeString(s)
		}
		return s
	}

	return map[string]interface{}{
		"uppercase": func(s string) interface{} {
			return out(strings.ToUpper(s))
		},
		"lowercase": func(s string) interface{} {
			return out(strings.ToLower(s))
		},
		"default": func(value interface{}, fallback interface{}) interface{} {
			if s := raymond.Str(value); s != "" {
				return out(s)
			}
			return out(raymond.Str(fallback))
		},
		// {{formatTime booking.start_time "Mon, 02 Jan 15:04" tz=booking.time_zone}}
		"formatTime": func(value string, layout string, options *raymond.Options) interface{} {
			t, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return out(value)
			}
			if tz := options.HashStr("tz"); tz != "" {
				if loc, err := time.LoadLocation(tz); err == nil {
					t = t.In(loc)
				}
			}
			return out(t.Format(layout))
		},
	}
}
