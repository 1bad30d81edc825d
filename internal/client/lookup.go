package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/resilience"
	"github.com/rawbank/reclamations-gateway-go/internal/port"
)

// lookupDebounce is how long the watcher waits after the last keystroke
// before firing a lookup.
const lookupDebounce = 300 * time.Millisecond

// genericLookupError is shown when the gateway could not be reached; a
// rejection that carries its own message is surfaced as-is.
const genericLookupError = "Erreur API comptes"

// LookupState is what the watcher reports to its observer. States for a
// superseded query are never delivered.
type LookupState struct {
	Loading  bool
	Accounts []domain.Account
	Err      string
}

// LookupWatcher turns a stream of identifier edits into at most one
// in-flight lookup. Each Update supersedes the previous one: its debounce
// timer is stopped, its in-flight request canceled and any late result
// dropped on the generation check.
type LookupWatcher struct {
	fetcher  port.AccountsFetcher
	cfg      resilience.Config
	onChange func(LookupState)

	mu         sync.Mutex
	generation uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	closed     bool
}

// NewLookupWatcher creates a watcher delivering states to onChange. The
// callback is invoked from the watcher's goroutines; observers needing a
// particular goroutine must hop themselves.
func NewLookupWatcher(fetcher port.AccountsFetcher, cfg resilience.Config, onChange func(LookupState)) *LookupWatcher {
	return &LookupWatcher{fetcher: fetcher, cfg: cfg, onChange: onChange}
}

// Update registers the latest query. Ineligible queries reset the state to
// idle without touching the network.
func (w *LookupWatcher) Update(query domain.LookupQuery) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.generation++
	gen := w.generation
	w.stopPendingLocked()

	if !query.Eligible() {
		w.mu.Unlock()
		w.emit(gen, LookupState{Accounts: []domain.Account{}})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.timer = time.AfterFunc(lookupDebounce, func() {
		w.run(ctx, gen, query)
	})
	w.mu.Unlock()
}

// Close stops the pending timer and cancels any in-flight lookup. The
// watcher delivers no further states.
func (w *LookupWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.generation++
	w.stopPendingLocked()
}

// stopPendingLocked stops the debounce timer and cancels the in-flight
// request of the superseded query. Callers hold w.mu.
func (w *LookupWatcher) stopPendingLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *LookupWatcher) run(ctx context.Context, gen uint64, query domain.LookupQuery) {
	w.emit(gen, LookupState{Loading: true})

	var accounts []domain.Account
	err := resilience.RetryWithBackoff(ctx, w.cfg, func() error {
		result, err := w.fetcher.GetAccounts(ctx, query)
		if err != nil {
			// A downstream rejection will not change on a retry.
			var functional *domain.ErrFunctional
			if errors.As(err, &functional) {
				return resilience.Permanent(err)
			}
			return err
		}
		accounts = result
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			// Superseded or closed; whoever canceled owns the state now.
			return
		}
		// A rejection carries the gateway's own message; only exhausted
		// transport retries degrade to the generic text.
		message := genericLookupError
		var functional *domain.ErrFunctional
		if errors.As(err, &functional) && functional.Message != "" {
			message = functional.Message
		}
		w.emit(gen, LookupState{Err: message})
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	w.emit(gen, LookupState{Accounts: accounts})
}

// emit delivers a state unless the query it belongs to has been superseded.
func (w *LookupWatcher) emit(gen uint64, state LookupState) {
	w.mu.Lock()
	alive := !w.closed && gen == w.generation
	w.mu.Unlock()
	if alive {
		w.onChange(state)
	}
}
