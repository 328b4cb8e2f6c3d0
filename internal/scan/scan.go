// Package scan drives full reminder passes over the vault: it gates on the
// configured active-hour window, extracts candidates per note, and delivers
// every due, not-yet-fired reminder exactly once.
package scan

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/muninn/internal/apperr"
	"github.com/starford/muninn/internal/extract"
	"github.com/starford/muninn/internal/gateway"
	"github.com/starford/muninn/internal/history"
	"github.com/starford/muninn/internal/message"
	"github.com/starford/muninn/internal/models"
	"github.com/starford/muninn/internal/parser"
	"github.com/starford/muninn/internal/storage"
)

// EventCallback is called after notable scan events. event is one of
// "scan.started", "scan.finished", "reminder.delivered".
type EventCallback func(event string, data map[string]any)

// Config carries the scan-time settings.
type Config struct {
	Rules     extract.Rules
	StartHour int // inclusive lower bound of the active window
	EndHour   int // exclusive upper bound of the active window
	Location  *time.Location
}

// Result summarizes one scan pass.
type Result struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
	WindowClosed bool          `json:"window_closed"`
	Notes        int           `json:"notes"`
	Candidates   int           `json:"candidates"`
	Delivered    int           `json:"delivered"`
	Failed       int           `json:"failed"`
	Pending      int           `json:"pending"`
	AlreadySent  int           `json:"already_sent"`
}

// Scanner orchestrates reminder scans. A single Scanner serves the cron
// tick, the watcher trigger, the HTTP trigger, and the CLI one-shot; a
// compare-and-swap guard keeps overlapping invocations from interleaving.
type Scanner struct {
	store storage.Provider
	hist  history.Store
	gw    gateway.Gateway
	cfg   Config
	log   *slog.Logger

	// OnEvent, if non-nil, receives scan lifecycle events. Set before the
	// first Scan; it is read without locking.
	OnEvent EventCallback

	now     func() time.Time
	running atomic.Bool

	mu   sync.Mutex
	last *Result
}

// New creates a Scanner.
func New(store storage.Provider, hist history.Store, gw gateway.Gateway, cfg Config, log *slog.Logger) *Scanner {
	return &Scanner{
		store: store,
		hist:  hist,
		gw:    gw,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// Scan runs one full pass. It returns ErrScanInProgress if another pass is
// still running; callers treat that as "skip this tick", not a failure.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Result{}, apperr.ErrScanInProgress
	}
	defer s.running.Store(false)

	now := s.now().In(s.cfg.Location)
	res := Result{StartedAt: now}
	s.emit("scan.started", map[string]any{"at": now})

	if h := now.Hour(); h < s.cfg.StartHour || h >= s.cfg.EndHour {
		// Outside the active window nothing is delivered and nothing is
		// marked: every due candidate stays eligible for when the window
		// reopens.
		res.WindowClosed = true
		s.log.Debug("scan skipped, outside active hours",
			slog.Int("hour", now.Hour()),
			slog.Int("start", s.cfg.StartHour),
			slog.Int("end", s.cfg.EndHour))
		s.finish(&res)
		return res, nil
	}

	metas, err := s.store.List("")
	if err != nil {
		s.finish(&res)
		return res, err
	}

	for _, m := range metas {
		note, err := s.loadNote(m.Path)
		if err != nil {
			s.log.Warn("scan: note skipped",
				slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		res.Notes++
		s.processNote(ctx, note, now, &res)
	}

	s.finish(&res)
	s.log.Info("scan finished",
		slog.Int("notes", res.Notes),
		slog.Int("delivered", res.Delivered),
		slog.Int("failed", res.Failed),
		slog.Int("pending", res.Pending))
	return res, nil
}

// processNote walks one note's candidates. Failures are scoped to a single
// candidate; nothing here aborts the rest of the scan.
func (s *Scanner) processNote(ctx context.Context, note *models.Note, now time.Time, res *Result) {
	for _, c := range extract.Candidates(note, s.cfg.Rules) {
		res.Candidates++
		identity := c.Identity()

		fired, err := s.hist.Fired(identity)
		if err != nil {
			s.log.Warn("scan: history lookup failed",
				slog.String("identity", identity), slog.String("error", err.Error()))
			continue
		}
		if fired {
			res.AlreadySent++
			continue
		}
		if c.Trigger.After(now) {
			res.Pending++
			continue
		}

		text := message.Render(c.Template, c.Allowed, c.Data)
		if err := s.gw.Send(ctx, text); err != nil {
			// Left unmarked so the next pass retries while trigger <= now.
			res.Failed++
			s.log.Warn("scan: delivery failed",
				slog.String("identity", identity), slog.String("error", err.Error()))
			continue
		}

		if err := s.hist.MarkFired(identity, now); err != nil {
			// Delivery succeeded but the commit did not; the reminder may
			// repeat next pass. Surface loudly.
			s.log.Error("scan: history commit failed after delivery",
				slog.String("identity", identity), slog.String("error", err.Error()))
		}
		res.Delivered++
		s.emit("reminder.delivered", map[string]any{
			"identity": identity,
			"note":     c.NotePath,
			"kind":     c.Kind,
		})
		s.log.Info("reminder delivered",
			slog.String("note", c.NotePath),
			slog.String("kind", c.Kind))
	}
}

func (s *Scanner) loadNote(path string) (*models.Note, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return &models.Note{
		Path:        path,
		Frontmatter: res.Frontmatter,
		Lines:       res.Lines,
		Title:       res.Title,
	}, nil
}

func (s *Scanner) finish(res *Result) {
	res.Duration = s.now().In(s.cfg.Location).Sub(res.StartedAt)
	s.mu.Lock()
	cp := *res
	s.last = &cp
	s.mu.Unlock()
	s.emit("scan.finished", map[string]any{
		"delivered":     res.Delivered,
		"failed":        res.Failed,
		"pending":       res.Pending,
		"window_closed": res.WindowClosed,
	})
}

func (s *Scanner) emit(event string, data map[string]any) {
	if s.OnEvent != nil {
		s.OnEvent(event, data)
	}
}

// LastResult returns the most recent pass summary, if any pass has run.
func (s *Scanner) LastResult() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Result{}, false
	}
	return *s.last, true
}

// Running reports whether a pass is currently in flight.
func (s *Scanner) Running() bool {
	return s.running.Load()
}

// UpcomingReminder is one candidate with its current fire state, for the
// inspection surfaces (API and MCP). Nothing here mutates history.
type UpcomingReminder struct {
	NotePath string    `json:"note_path"`
	Kind     string    `json:"kind"`
	Trigger  time.Time `json:"trigger"`
	Due      bool      `json:"due"`
	Fired    bool      `json:"fired"`
}

// Upcoming lists every candidate in the vault sorted by trigger instant.
func (s *Scanner) Upcoming(ctx context.Context) ([]UpcomingReminder, error) {
	now := s.now().In(s.cfg.Location)

	metas, err := s.store.List("")
	if err != nil {
		return nil, err
	}

	var out []UpcomingReminder
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		note, err := s.loadNote(m.Path)
		if err != nil {
			s.log.Warn("upcoming: note skipped",
				slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		for _, c := range extract.Candidates(note, s.cfg.Rules) {
			fired, err := s.hist.Fired(c.Identity())
			if err != nil {
				continue
			}
			out = append(out, UpcomingReminder{
				NotePath: c.NotePath,
				Kind:     c.Kind,
				Trigger:  c.Trigger,
				Due:      !c.Trigger.After(now),
				Fired:    fired,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Trigger.Equal(out[j].Trigger) {
			return out[i].Trigger.Before(out[j].Trigger)
		}
		if out[i].NotePath != out[j].NotePath {
			return out[i].NotePath < out[j].NotePath
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}
