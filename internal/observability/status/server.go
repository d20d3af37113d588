// Package status serves the keep-alive and status endpoints over HTTP.
package status

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"

	rtsup "github.com/Sumitpatel080/Forward/internal/runtime/supervisor"
	"github.com/Sumitpatel080/Forward/internal/task/scheduler"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

const serviceName = "forwardbot"

// Sources supplies the live values a Report is built from. Nil funcs report zero.
type Sources struct {
	StartedAt     time.Time
	Armed         func() []scheduler.Armed
	Conversations func(ctx context.Context) int
	Supervisors   func() map[string]rtsup.Counters
}

type Report struct {
	Status        string                    `json:"status"`
	Timestamp     time.Time                 `json:"timestamp"`
	Service       string                    `json:"service"`
	Uptime        string                    `json:"uptime"`
	UptimeSeconds int64                     `json:"uptime_seconds"`
	ArmedPosts    int                       `json:"armed_posts"`
	NextFire      *time.Time                `json:"next_fire,omitempty"`
	Conversations int                       `json:"active_conversations"`
	Goroutines    int                       `json:"goroutines"`
	Supervisors   map[string]rtsup.Counters `json:"supervisors,omitempty"`
}

// Collect builds a Report from src at now.
func Collect(ctx context.Context, src Sources, now time.Time) Report {
	r := Report{
		Status:     "running",
		Timestamp:  now,
		Service:    serviceName,
		Goroutines: runtime.NumGoroutine(),
	}
	if !src.StartedAt.IsZero() {
		up := now.Sub(src.StartedAt).Truncate(time.Second)
		r.Uptime = up.String()
		r.UptimeSeconds = int64(up / time.Second)
	}
	if src.Armed != nil {
		armed := src.Armed()
		r.ArmedPosts = len(armed)
		if len(armed) > 0 {
			at := armed[0].At
			r.NextFire = &at
		}
	}
	if src.Conversations != nil {
		r.Conversations = src.Conversations(ctx)
	}
	if src.Supervisors != nil {
		r.Supervisors = src.Supervisors()
	}
	return r
}

// Lines renders r for chat display.
func (r Report) Lines() []string {
	out := []string{
		"uptime: " + r.Uptime,
		fmt.Sprintf("armed posts: %d", r.ArmedPosts),
	}
	if r.NextFire != nil {
		out = append(out, "next delivery: "+humanize.RelTime(*r.NextFire, r.Timestamp, "ago", "from now"))
	}
	out = append(out,
		fmt.Sprintf("active conversations: %d", r.Conversations),
		fmt.Sprintf("goroutines: %d", r.Goroutines),
	)
	names := make([]string, 0, len(r.Supervisors))
	for n := range r.Supervisors {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c := r.Supervisors[n]
		out = append(out, fmt.Sprintf("%s: active=%d restarts=%d panics=%d", n, c.Active, c.Restarts, c.Panics))
	}
	return out
}

type Config struct {
	Enabled bool
	Addr    string
}

type Server struct {
	cfg Config
	src Sources
	log logx.Logger
	app *fiber.App

	mu  sync.Mutex
	sup *rtsup.Supervisor
}

func New(cfg Config, src Sources, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{cfg: cfg, src: src, log: log}
	s.app = fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
		IdleTimeout:           30 * time.Second,
	})
	s.app.Get("/", s.handleRoot)
	s.app.Get("/status", s.handleStatus)
	return s
}

// App exposes the fiber app for in-process requests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Enabled() bool { return s.cfg.Enabled }

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.SendString("Forward bot is running")
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(Collect(c.UserContext(), s.src, time.Now()))
}

// Start listens in the background until Stop or ctx cancellation.
func (s *Server) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return
	}
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	s.sup.Go("status.listen", func(context.Context) error {
		s.log.Info("status server listening", logx.String("addr", s.cfg.Addr))
		if err := s.app.Listen(s.cfg.Addr); err != nil {
			s.log.Error("status server failed", logx.String("addr", s.cfg.Addr), logx.Err(err))
			return err
		}
		return nil
	})
	s.sup.Go0("status.shutdown_on_cancel", func(c context.Context) {
		<-c.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(sctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("status server shutdown", logx.Err(err))
		}
	})
}

func (s *Server) Supervisor() *rtsup.Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sup
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}
