package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-lynx/vectorium/log"
	"github.com/go-lynx/vectorium/ui"
)

// Logger is the logging capability handed to plugins.
type Logger interface {
	Log(level log.Level, msg string)
	Logf(level log.Level, format string, args ...any)
	EnableDebugLogging()
	DisableDebugLogging()
	IsDebugLoggingEnabled() bool
	SetPluginName(name string)
}

// RestClient is the HTTP capability handed to plugins.
type RestClient interface {
	SetDefaultHeaders(headers map[string]string)
	SetTimeout(d time.Duration)
	SetBearerToken(token string)
	SetBaseURL(url string)
	Get(ctx context.Context, path string, params map[string]string) (*RestResponse, error)
	Post(ctx context.Context, path string, body []byte, contentType string) (*RestResponse, error)
}

// RestResponse is a completed HTTP exchange, whatever its status.
type RestResponse struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// OK reports a 2xx status.
func (r *RestResponse) OK() bool { return r != nil && r.Status >= 200 && r.Status < 300 }

// RestError is returned when no response could be obtained.
type RestError struct {
	Message string
	Err     error
}

func (e *RestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rest: %s: %v", e.Message, e.Err)
	}
	return "rest: " + e.Message
}

func (e *RestError) Unwrap() error { return e.Err }

// UI lets plugins reach the host's shared UI context and register render
// callbacks. It has no null object: a plugin that needs it must check.
type UI interface {
	Context() *ui.Handle
	SetContext(h *ui.Handle)
	RegisterPluginUI(plugin string, render func(ui.Surface))
	UnregisterPluginUI(plugin string)
	RenderPluginUIs(s ui.Surface)
	IsContextValid() bool
	ExecuteWithContext(fn func(*ui.Handle), operation string) bool
	DiagnosticInfo() string
	RegisteredPluginCount() int
	SetErrorCallback(cb func(msg string))
}
