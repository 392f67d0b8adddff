// Package admin exposes the plugin manager over HTTP: plugin listings and
// health, load and unload, scans, recent engine events and Prometheus
// metrics.
package admin

import (
	"context"
	"errors"
	"strconv"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	jwtmw "github.com/go-kratos/kratos/v2/middleware/auth/jwt"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/golang-jwt/jwt/v5"

	"github.com/go-lynx/vectorium"
	"github.com/go-lynx/vectorium/events"
	"github.com/go-lynx/vectorium/log"
	"github.com/go-lynx/vectorium/observability/metrics"
	"github.com/go-lynx/vectorium/plugins"
)

// DefaultEventLimit is the number of events GET /events returns without a
// limit parameter.
const DefaultEventLimit = 50

// PluginView describes a loaded plugin.
type PluginView struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Path      string    `json:"path"`
	LoadedAt  time.Time `json:"loadedAt"`
	Debug     bool      `json:"debug"`
	TickState string    `json:"tickState"`

	Health plugins.HealthReport `json:"health"`
}

// EventView is the wire form of an engine event.
type EventView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Plugin    string    `json:"plugin,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ScanResult lists the plugins a scan discovered.
type ScanResult struct {
	Added []string `json:"added"`
}

type options struct {
	addr      string
	jwtSecret string
	logger    klog.Logger
	timeout   time.Duration
}

// Option configures a Server.
type Option func(o *options)

func Address(addr string) Option { return func(o *options) { o.addr = addr } }

// JWTSecret enables HS256 bearer authentication on every route except
// /metrics.
func JWTSecret(secret string) Option { return func(o *options) { o.jwtSecret = secret } }

func Logger(l klog.Logger) Option { return func(o *options) { o.logger = l } }

func Timeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// Server is the admin HTTP server.
type Server struct {
	*khttp.Server
	m *vectorium.PluginManager
}

// NewServer builds a Server over m. It does not listen until Start.
func NewServer(m *vectorium.PluginManager, opts ...Option) *Server {
	o := &options{logger: log.Raw(), timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(o)
	}

	mws := []middleware.Middleware{
		recovery.Recovery(
			recovery.WithHandler(func(ctx context.Context, req, err interface{}) error {
				log.Errorf("admin handler panic: %v", err)
				return kerrors.InternalServer("PANIC", "internal error")
			}),
		),
		logging.Server(o.logger),
	}
	if o.jwtSecret != "" {
		secret := []byte(o.jwtSecret)
		mws = append(mws, jwtmw.Server(
			func(*jwt.Token) (interface{}, error) { return secret, nil },
			jwtmw.WithSigningMethod(jwt.SigningMethodHS256),
		))
	}

	srvOpts := []khttp.ServerOption{
		khttp.Middleware(mws...),
		khttp.Timeout(o.timeout),
	}
	if o.addr != "" {
		srvOpts = append(srvOpts, khttp.Address(o.addr))
	}

	s := &Server{Server: khttp.NewServer(srvOpts...), m: m}
	s.HandlePrefix("/metrics", metrics.Handler())

	r := s.Route("/")
	r.GET("/plugins", s.listLoaded)
	r.GET("/plugins/discovered", s.listDiscovered)
	r.POST("/plugins/{name}/load", s.load)
	r.POST("/plugins/{name}/unload", s.unload)
	r.GET("/plugins/{name}/health", s.health)
	r.POST("/scan", s.scan)
	r.GET("/events", s.events)
	return s
}

// call runs fn through the server middleware and encodes its result.
func call(ctx khttp.Context, fn func(context.Context) (interface{}, error)) error {
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		return fn(c)
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *Server) listLoaded(ctx khttp.Context) error {
	return call(ctx, func(context.Context) (interface{}, error) {
		insts := s.m.Instances()
		out := make([]PluginView, 0, len(insts))
		for _, inst := range insts {
			v := PluginView{
				Name:     inst.Name(),
				Path:     inst.Path(),
				LoadedAt: inst.LoadedAt(),
				Debug:    inst.IsDebugLogging(),
			}
			if d := inst.Descriptor(); d != nil {
				v.Version = d.Version
			}
			if st, ok := s.m.TickState(inst.Name()); ok {
				v.TickState = st.String()
			}
			if rep, err := s.m.Health(inst.Name()); err == nil {
				v.Health = rep
			}
			out = append(out, v)
		}
		return out, nil
	})
}

func (s *Server) listDiscovered(ctx khttp.Context) error {
	return call(ctx, func(context.Context) (interface{}, error) {
		return s.m.Discovered(), nil
	})
}

func (s *Server) load(ctx khttp.Context) error {
	name := ctx.Vars().Get("name")
	return call(ctx, func(context.Context) (interface{}, error) {
		if err := s.m.Load(s.m.PathFor(name), name); err != nil {
			return nil, toHTTPError(err)
		}
		info, _ := s.m.Info(name)
		return info, nil
	})
}

func (s *Server) unload(ctx khttp.Context) error {
	name := ctx.Vars().Get("name")
	return call(ctx, func(context.Context) (interface{}, error) {
		if err := s.m.Unload(name); err != nil {
			return nil, toHTTPError(err)
		}
		info, _ := s.m.Info(name)
		return info, nil
	})
}

func (s *Server) health(ctx khttp.Context) error {
	name := ctx.Vars().Get("name")
	return call(ctx, func(context.Context) (interface{}, error) {
		rep, err := s.m.Health(name)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return rep, nil
	})
}

func (s *Server) scan(ctx khttp.Context) error {
	return call(ctx, func(context.Context) (interface{}, error) {
		added, err := s.m.Scan("")
		if err != nil {
			return nil, kerrors.InternalServer("SCAN_FAILED", err.Error())
		}
		if added == nil {
			added = []string{}
		}
		return ScanResult{Added: added}, nil
	})
}

func (s *Server) events(ctx khttp.Context) error {
	limit := DefaultEventLimit
	if v := ctx.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return kerrors.BadRequest("INVALID_LIMIT", "limit must be a positive integer")
		}
		limit = n
	}
	return call(ctx, func(context.Context) (interface{}, error) {
		recent := s.m.Bus().History().Recent(limit)
		out := make([]EventView, 0, len(recent))
		for _, ev := range recent {
			out = append(out, eventView(ev))
		}
		return out, nil
	})
}

func eventView(ev events.Event) EventView {
	v := EventView{
		ID:        ev.ID,
		Kind:      ev.Kind.String(),
		Plugin:    ev.Plugin,
		Message:   ev.Message,
		Timestamp: ev.Timestamp,
	}
	if ev.Err != nil {
		v.Error = ev.Err.Error()
	}
	return v
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, plugins.ErrPluginNotFound):
		return kerrors.NotFound("PLUGIN_NOT_FOUND", err.Error())
	case errors.Is(err, plugins.ErrPluginNotLoaded):
		return kerrors.NotFound("PLUGIN_NOT_LOADED", err.Error())
	case errors.Is(err, plugins.ErrLoadRejected), errors.Is(err, plugins.ErrMissingRequiredService):
		return kerrors.New(422, "PLUGIN_REJECTED", err.Error())
	case errors.Is(err, plugins.ErrPluginOperationInProgress):
		return kerrors.Conflict("PLUGIN_BUSY", err.Error())
	default:
		return kerrors.InternalServer("PLUGIN_OPERATION_FAILED", err.Error())
	}
}
