// Package reconcile makes sure a business or page exists on the management
// API before anything references its id there. The seller service may hold
// businesses the management API has never seen, and the two do not share
// an id space.
package reconcile

import (
	"context"
	"errors"
	"log"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"petit-storefront/internal/backend"
	"petit-storefront/internal/domain"
	"petit-storefront/internal/store"
)

// ErrNotSignedIn is returned when a business must be created but no
// seller token is available.
var ErrNotSignedIn = errors.New("reconcile: seller token required")

const notSignedInMessage = "You must be signed in as a seller to perform this action"

// State is where an entity stands with the management API.
type State int

const (
	Unsynced State = iota
	Syncing
	Synced
)

func (s State) String() string {
	switch s {
	case Syncing:
		return "syncing"
	case Synced:
		return "synced"
	default:
		return "unsynced"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// BusinessAPI is the part of the management API the reconciler calls.
type BusinessAPI interface {
	GetBusiness(ctx context.Context, token, id string) (*domain.Business, error)
	CreateBusiness(ctx context.Context, token string, in backend.BusinessInput) (*domain.Business, error)
	CreatePage(ctx context.Context, token string, in backend.PageInput) (*domain.Page, error)
	ManagementBusinesses(ctx context.Context, token string) ([]domain.Business, error)
}

var numericID = regexp.MustCompile(`^\d+$`)

// ensureTimeout bounds one shared business sync.
const ensureTimeout = 30 * time.Second

// ledger is the persisted Synced set of one client: local business id to
// management id, plus the page ids last seen upstream.
type ledger struct {
	Businesses map[string]int64 `json:"businesses"`
	Pages      map[string]bool  `json:"pages"`
}

// flight is one ensure in progress. Callers that find one wait for it.
type flight struct {
	done chan struct{}
	id   int64
	err  error
}

// Reconciler runs ensure-sync for every client. It is safe for concurrent
// use; two requests ensuring the same business share one creation.
type Reconciler struct {
	api BusinessAPI

	mu       sync.Mutex
	inflight map[string]*flight
}

// New creates a Reconciler.
func New(api BusinessAPI) *Reconciler {
	return &Reconciler{api: api, inflight: make(map[string]*flight)}
}

func (r *Reconciler) loadLedger(ctx context.Context, local *store.Local) ledger {
	var l ledger
	local.GetJSON(ctx, domain.KeySyncLedger, &l)
	if l.Businesses == nil {
		l.Businesses = make(map[string]int64)
	}
	if l.Pages == nil {
		l.Pages = make(map[string]bool)
	}
	return l
}

func (r *Reconciler) updateLedger(ctx context.Context, local *store.Local, fn func(*ledger)) {
	local.Update(func() {
		l := r.loadLedger(ctx, local)
		fn(&l)
		local.SetJSON(ctx, domain.KeySyncLedger, l)
	})
}

// State reports where b stands, and its management id once Synced.
func (r *Reconciler) State(ctx context.Context, local *store.Local, b domain.Business) (State, int64) {
	if b.RemoteID != 0 {
		return Synced, b.RemoteID
	}
	if id, ok := r.loadLedger(ctx, local).Businesses[b.ID]; ok {
		return Synced, id
	}
	r.mu.Lock()
	_, busy := r.inflight[flightKey(local, b.ID)]
	r.mu.Unlock()
	if busy {
		return Syncing, 0
	}
	return Unsynced, 0
}

func flightKey(local *store.Local, id string) string {
	return local.ClientID() + "/" + id
}

// EnsureBusiness returns the management id of b, creating the business
// there when needed. The adopted id is stored on b and in the ledger.
//
// A candidate id made only of digits that fits a 32-bit signed integer is
// looked up first. Any other id cannot exist upstream and goes straight to
// creation. A failed lookup is not an error; it falls through to creation.
// An id already in the ledger is looked up again, and dropped when the
// management API no longer has it.
func (r *Reconciler) EnsureBusiness(ctx context.Context, local *store.Local, token string, b *domain.Business) (int64, error) {
	var stale int64
	if st, id := r.State(ctx, local, *b); st == Synced {
		_, err := r.api.GetBusiness(ctx, token, strconv.FormatInt(id, 10))
		if !errors.Is(err, backend.ErrNotFound) {
			if err != nil {
				log.Printf("WARN: Could not verify business %s (upstream %d), keeping it: %v", b.ID, id, err)
			}
			b.RemoteID = id
			return id, nil
		}
		log.Printf("INFO: Business %s (upstream %d) is gone upstream, recreating it", b.ID, id)
		r.forgetRemote(ctx, local, b.ID, id)
		b.RemoteID = 0
		stale = id
	}

	key := flightKey(local, b.ID)
	r.mu.Lock()
	if f, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		select {
		case <-f.done:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		if f.err == nil {
			b.RemoteID = f.id
		}
		return f.id, f.err
	}
	// a flight may have finished since the first check
	if id, ok := r.loadLedger(ctx, local).Businesses[b.ID]; ok && id != stale {
		r.mu.Unlock()
		b.RemoteID = id
		return id, nil
	}
	f := &flight{done: make(chan struct{})}
	r.inflight[key] = f
	r.mu.Unlock()

	// the flight outlives the request that started it, since other
	// requests may be waiting on it
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ensureTimeout)
	f.id, f.err = r.syncBusiness(sctx, local, token, b, stale)
	cancel()

	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()
	close(f.done)
	return f.id, f.err
}

// syncBusiness looks b up and creates it when missing. skip is an id
// already known to be gone upstream.
func (r *Reconciler) syncBusiness(ctx context.Context, local *store.Local, token string, b *domain.Business, skip int64) (int64, error) {
	if candidate, ok := lookupCandidate(b.ID); ok && candidate != skip {
		_, err := r.api.GetBusiness(ctx, token, strconv.FormatInt(candidate, 10))
		if err == nil {
			r.adopt(ctx, local, b, candidate)
			return candidate, nil
		}
		log.Printf("INFO: Business %s not found upstream (%v), creating it", b.ID, err)
	} else if !ok && numericID.MatchString(b.ID) {
		log.Printf("INFO: Business id %s is outside the management id range, creating instead of looking up", b.ID)
	}

	if token == "" {
		return 0, backend.Failf(http.StatusUnauthorized, ErrNotSignedIn, notSignedInMessage)
	}
	created, err := r.api.CreateBusiness(ctx, token, backend.BusinessInput{
		Name: b.Name, Category: b.Category, Country: b.Country, City: b.City,
	})
	if err != nil {
		return 0, backend.Failf(backend.StatusOf(err), err, "%s", backend.UserMessage(err, "Failed to create business on server"))
	}
	id, err := strconv.ParseInt(created.ID, 10, 64)
	if err != nil {
		return 0, backend.Failf(http.StatusBadGateway, err, "Server returned business id %q", created.ID)
	}
	log.Printf("INFO: Business %s created upstream with id %d", b.ID, id)
	r.adopt(ctx, local, b, id)
	return id, nil
}

// forgetRemote drops every ledger entry pointing at remote.
func (r *Reconciler) forgetRemote(ctx context.Context, local *store.Local, localID string, remote int64) {
	r.updateLedger(ctx, local, func(l *ledger) {
		delete(l.Businesses, localID)
		for k, v := range l.Businesses {
			if v == remote {
				delete(l.Businesses, k)
			}
		}
	})
}

// lookupCandidate reports whether id can name a management business.
func lookupCandidate(id string) (int64, bool) {
	if !numericID.MatchString(id) {
		return 0, false
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n > math.MaxInt32 {
		return 0, false
	}
	return n, true
}

func (r *Reconciler) adopt(ctx context.Context, local *store.Local, b *domain.Business, id int64) {
	b.RemoteID = id
	r.updateLedger(ctx, local, func(l *ledger) {
		l.Businesses[b.ID] = id
		if strconv.FormatInt(id, 10) != b.ID {
			// later lookups may use either id
			l.Businesses[strconv.FormatInt(id, 10)] = id
		}
	})
}

// EnsurePage makes sure page pageID of b exists upstream and returns its
// id. An empty pageID gets a fresh UUID. The page is posted every time: a
// conflict means it is already there, so a page deleted upstream comes
// back. Any other failure is forgiven only when the management listing
// shows the page.
func (r *Reconciler) EnsurePage(ctx context.Context, local *store.Local, token, pageID, title string, b *domain.Business) (string, error) {
	pid := pageID
	if pid == "" {
		pid = uuid.NewString()
	}

	bizID, err := r.EnsureBusiness(ctx, local, token, b)
	if err != nil {
		return "", err
	}

	_, createErr := r.api.CreatePage(ctx, token, backend.PageInput{ID: pid, Title: title, BusinessID: bizID})
	switch {
	case createErr == nil:
	case errors.Is(createErr, backend.ErrConflict):
		log.Printf("INFO: Page %s already exists upstream", pid)
	case r.pageListed(ctx, token, pid):
		log.Printf("INFO: Page %s create failed (%v) but the listing has it", pid, createErr)
	default:
		return "", backend.Failf(backend.StatusOf(createErr), createErr, "%s",
			backend.UserMessage(createErr, "Failed to ensure page on server"))
	}
	r.MarkPage(ctx, local, pid)
	return pid, nil
}

func (r *Reconciler) pageListed(ctx context.Context, token, pid string) bool {
	list, err := r.api.ManagementBusinesses(ctx, token)
	if err != nil {
		return false
	}
	for i := range list {
		if list[i].PageByID(pid) != nil {
			return true
		}
	}
	return false
}

// MarkBusiness records that b is known upstream under id.
func (r *Reconciler) MarkBusiness(ctx context.Context, local *store.Local, b *domain.Business, id int64) {
	r.adopt(ctx, local, b, id)
}

// MarkPage records that page id exists upstream.
func (r *Reconciler) MarkPage(ctx context.Context, local *store.Local, id string) {
	r.updateLedger(ctx, local, func(l *ledger) { l.Pages[id] = true })
}

// ForgetPage drops a deleted page from the ledger.
func (r *Reconciler) ForgetPage(ctx context.Context, local *store.Local, id string) {
	r.updateLedger(ctx, local, func(l *ledger) { delete(l.Pages, id) })
}

// ForgetBusiness drops a deleted business, and its pages, from the ledger.
func (r *Reconciler) ForgetBusiness(ctx context.Context, local *store.Local, b domain.Business) {
	r.updateLedger(ctx, local, func(l *ledger) {
		remote, ok := l.Businesses[b.ID]
		delete(l.Businesses, b.ID)
		if ok {
			delete(l.Businesses, strconv.FormatInt(remote, 10))
		}
		for _, p := range b.Pages {
			delete(l.Pages, p.ID)
		}
	})
}
