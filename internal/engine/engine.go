// Package engine provides the synchronization engine that reconciles local
// optimistic edits with the remote document store.
//
// The engine:
//  1. Loads the local mirror at startup so a document is available before
//     any network round trip completes
//  2. Applies local mutations immediately, mirrors them, and coalesces them
//     into debounced remote writes
//  3. Polls the remote store on a fixed interval and adopts remote changes,
//     never while a local write is outstanding
//  4. Retries failed writes with growing delays up to a bounded cap, then
//     waits for a manual retry
//
// Remote failures are never fatal: they only move the reported status, and
// editing continues against the mirror regardless.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"louvor/internal/mirror"
	"louvor/internal/remote"
	"louvor/internal/schema"
)

// Status is the sync state surfaced to viewers. It is the only error
// channel this subsystem has; nothing here panics or returns fatal errors
// for remote trouble.
type Status string

const (
	// StatusLoading is the initial state before the first poll resolves.
	StatusLoading Status = "loading"
	// StatusSynced means the last remote exchange succeeded.
	StatusSynced Status = "synced"
	// StatusSyncing means a remote write is in flight.
	StatusSyncing Status = "syncing"
	// StatusLocal means the last poll failed; edits continue locally.
	StatusLocal Status = "local"
	// StatusError means a write exhausted its retries and waits for a
	// manual Retry call or a superseding edit.
	StatusError Status = "error"
)

// saveState tracks the write half of the engine. Polls are gated on it:
// a remote read never replaces the document while a write is outstanding.
type saveState int

const (
	stateIdle saveState = iota
	stateSaving
	stateSaveQueued
)

// Notifier observes engine events. Implementations must not block and must
// not call back into the engine; calls may come from engine goroutines.
type Notifier interface {
	// StatusChanged fires whenever the sync status moves.
	StatusChanged(status Status)
	// DocumentUpdated fires whenever the in-memory document is replaced,
	// by a local mutation or an adopted remote snapshot.
	DocumentUpdated(doc *schema.Document)
	// EntryLogged fires once per accepted local mutation with its audit
	// entry.
	EntryLogged(entry schema.AuditEntry)
}

// Config holds engine tuning.
type Config struct {
	// Actor is attributed in audit entries for local mutations.
	Actor string

	// PollInterval is how often the remote store is read back.
	PollInterval time.Duration

	// DebounceInterval is how long to wait after a local mutation before
	// flushing, so per-keystroke edits coalesce into one write.
	DebounceInterval time.Duration

	// RetryDelay is the base delay between write retries; attempt n waits
	// n times this long.
	RetryDelay time.Duration

	// MaxAttempts bounds consecutive write attempts before giving up and
	// reporting StatusError.
	MaxAttempts int

	// Logger for engine activity.
	Logger *log.Logger

	// Notifier receives engine events. Optional.
	Notifier Notifier
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Actor:            "anonymous",
		PollInterval:     10 * time.Second,
		DebounceInterval: 1500 * time.Millisecond,
		RetryDelay:       2 * time.Second,
		MaxAttempts:      3,
		Logger:           log.New(os.Stderr, "[engine] ", log.LstdFlags),
	}
}

// Engine owns the in-memory document and coordinates the mirror, the remote
// store and the timers. The document is replaced wholesale, never mutated
// in place, so every reader observes a consistent snapshot.
type Engine struct {
	store  *remote.Client
	mirror *mirror.Store
	cfg    *Config

	mu       sync.Mutex
	doc      *schema.Document
	status   Status
	state    saveState
	queued   *schema.Document // newest document that arrived while saving
	debounce *time.Timer
	editing  int // active free-text edit sessions; polls pause while > 0

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine. Call Start before use and Stop on teardown.
func New(store *remote.Client, m *mirror.Store, cfg *Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("remote client cannot be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("mirror cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	return &Engine{
		store:  store,
		mirror: m,
		cfg:    cfg,
		status: StatusLoading,
	}, nil
}

// Start loads the mirrored document (or the seed when the mirror is empty)
// and begins polling. The document is available as soon as Start returns,
// before any network call resolves.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	doc, err := e.mirror.Load()
	if err != nil {
		e.cfg.Logger.Printf("mirror unreadable, starting from seed: %v", err)
		doc = nil
	}
	if doc == nil {
		doc = schema.Seed()
		if err := e.mirror.Save(doc); err != nil {
			e.cfg.Logger.Printf("mirror seed write failed: %v", err)
		}
	}

	e.mu.Lock()
	e.doc = doc
	e.mu.Unlock()
	e.notifyDocument(doc)

	e.wg.Add(1)
	go e.pollLoop()

	return nil
}

// Stop cancels timers and waits for in-flight work to wind down. Edits made
// before Stop are in the mirror regardless of remote state.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
	e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// Document returns the current in-memory document. Callers must treat it as
// read-only; all changes go through mutation methods.
func (e *Engine) Document() *schema.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc
}

// Status returns the current sync status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// BeginEditing marks the start of a free-text editing session (for example
// composing the rehearsal notice). Polls are suppressed until the matching
// EndEditing, so an adopted remote snapshot cannot yank text out from under
// the editor.
func (e *Engine) BeginEditing() {
	e.mu.Lock()
	e.editing++
	e.mu.Unlock()
}

// EndEditing closes an editing session opened with BeginEditing.
func (e *Engine) EndEditing() {
	e.mu.Lock()
	if e.editing > 0 {
		e.editing--
	}
	e.mu.Unlock()
}

// Retry re-arms the remote write after the retry cap was exhausted. It is a
// no-op unless the engine is sitting in StatusError with no write in
// flight.
func (e *Engine) Retry() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusError || e.state != stateIdle {
		return
	}
	e.startSaveLocked()
}

// apply runs one pure document mutation: the new document replaces the old
// one, lands in the mirror synchronously, and a debounced flush is
// scheduled (or an immediate one, for promote).
func (e *Engine) apply(mutate func(*schema.Document) (*schema.Document, error), immediate bool) error {
	e.mu.Lock()
	next, err := mutate(e.doc)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.doc = next

	// Mirror before the remote write is even scheduled. A mirror failure
	// is logged and swallowed: local durability is best-effort, the
	// remote store is authoritative.
	if merr := e.mirror.Save(next); merr != nil {
		e.cfg.Logger.Printf("mirror write failed: %v", merr)
	}

	var entry *schema.AuditEntry
	if len(next.Logs) > 0 {
		entry = &next.Logs[0]
	}

	if immediate {
		if e.debounce != nil {
			e.debounce.Stop()
			e.debounce = nil
		}
		e.startSaveLocked()
	} else {
		e.scheduleFlushLocked()
	}
	e.mu.Unlock()

	e.notifyDocument(next)
	if entry != nil && e.cfg.Notifier != nil {
		e.cfg.Notifier.EntryLogged(*entry)
	}
	return nil
}

// scheduleFlushLocked restarts the debounce timer. Rapid successive edits
// keep pushing the flush out; only the last document is ever sent.
func (e *Engine) scheduleFlushLocked() {
	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.debounce = time.AfterFunc(e.cfg.DebounceInterval, e.flush)
}

// flush fires when the debounce window closes.
func (e *Engine) flush() {
	e.mu.Lock()
	e.debounce = nil
	if e.ctx == nil || e.ctx.Err() != nil {
		e.mu.Unlock()
		return
	}
	e.startSaveLocked()
	e.mu.Unlock()
}

// startSaveLocked begins a remote write of the current document, or queues
// it when one is already in flight. Only the most recent queued document
// survives; intermediate versions are superseded, never sent.
func (e *Engine) startSaveLocked() {
	switch e.state {
	case stateSaving, stateSaveQueued:
		e.state = stateSaveQueued
		e.queued = e.doc
		return
	}

	e.state = stateSaving
	e.setStatusLocked(StatusSyncing)
	doc := e.doc
	e.wg.Add(1)
	go e.saveLoop(doc)
}

// saveLoop pushes doc, then drains any document queued while the push was
// in flight. This is an explicit loop rather than recursive rescheduling,
// so chained saves cannot grow the stack.
func (e *Engine) saveLoop(doc *schema.Document) {
	defer e.wg.Done()

	for {
		err := e.pushWithRetry(doc)

		e.mu.Lock()
		if err != nil {
			e.cfg.Logger.Printf("save abandoned after %d attempts: %v", e.cfg.MaxAttempts, err)
			e.setStatusLocked(StatusError)
		} else {
			e.setStatusLocked(StatusSynced)
		}

		if e.state == stateSaveQueued {
			// A newer document arrived while this one was in flight.
			// Send it regardless of how this attempt ended; it
			// supersedes the failure too.
			doc = e.queued
			e.queued = nil
			e.state = stateSaving
			e.setStatusLocked(StatusSyncing)
			e.mu.Unlock()
			continue
		}

		e.state = stateIdle
		e.mu.Unlock()
		return
	}
}

// pushWithRetry attempts the remote write up to MaxAttempts times with a
// growing delay between attempts. Rate-limited and other failures are
// retried identically; the reason only shows up in logs.
func (e *Engine) pushWithRetry(doc *schema.Document) error {
	var err error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		err = e.store.Push(e.ctx, doc)
		if err == nil {
			return nil
		}
		if remote.IsRateLimited(err) {
			e.cfg.Logger.Printf("push attempt %d/%d rate limited", attempt, e.cfg.MaxAttempts)
		} else {
			e.cfg.Logger.Printf("push attempt %d/%d failed: %v", attempt, e.cfg.MaxAttempts, err)
		}
		if attempt == e.cfg.MaxAttempts {
			break
		}

		select {
		case <-e.ctx.Done():
			return e.ctx.Err()
		case <-time.After(time.Duration(attempt) * e.cfg.RetryDelay):
		}
	}
	return err
}

// pollLoop reads the remote store once at startup and then on every tick
// until the engine stops.
func (e *Engine) pollLoop() {
	defer e.wg.Done()

	e.poll()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.poll()
		}
	}
}

// poll fetches the remote document and adopts it when it differs from the
// in-memory one. The whole cycle is skipped while a write is outstanding
// (in flight or debounce-pending) or while the user is mid-edit; a stale
// read must never clobber local changes.
func (e *Engine) poll() {
	e.mu.Lock()
	if e.skipPollLocked() {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	fetched, err := e.store.Fetch(e.ctx)
	if err != nil {
		if e.ctx.Err() != nil {
			return
		}
		e.cfg.Logger.Printf("poll failed, staying on local copy: %v", err)
		e.mu.Lock()
		// Don't mask an error status that a failed save put up.
		if e.state == stateIdle && e.status != StatusError {
			e.setStatusLocked(StatusLocal)
		}
		e.mu.Unlock()
		return
	}

	var adopted *schema.Document

	e.mu.Lock()
	// Re-check: a save or an edit may have started during the fetch.
	if e.skipPollLocked() {
		e.mu.Unlock()
		return
	}
	if !schema.Equal(e.doc, fetched) {
		e.doc = fetched
		adopted = fetched
		if merr := e.mirror.Save(fetched); merr != nil {
			e.cfg.Logger.Printf("mirror write failed: %v", merr)
		}
	}
	e.setStatusLocked(StatusSynced)
	e.mu.Unlock()

	if adopted != nil {
		e.cfg.Logger.Printf("adopted remote document")
		e.notifyDocument(adopted)
	}
}

// skipPollLocked reports whether the current poll cycle must be skipped.
// A write in flight, a debounce-pending flush, an exhausted write awaiting
// manual retry, and an active editing session all count as outstanding
// local state that a remote read must not clobber.
func (e *Engine) skipPollLocked() bool {
	return e.state != stateIdle || e.debounce != nil || e.editing > 0 || e.status == StatusError
}

// setStatusLocked updates the status and notifies. The notifier contract
// (non-blocking, no reentry) makes calling under the lock safe.
func (e *Engine) setStatusLocked(status Status) {
	if e.status == status {
		return
	}
	e.status = status
	if e.cfg.Notifier != nil {
		e.cfg.Notifier.StatusChanged(status)
	}
}

func (e *Engine) notifyDocument(doc *schema.Document) {
	if e.cfg.Notifier != nil {
		e.cfg.Notifier.DocumentUpdated(doc)
	}
}
