// Package session runs one map page: its selection, URL query, debounced
// search, remote data and proposal form. All session state is owned by a
// single event-loop goroutine; public methods post closures to it.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"diaspora-map/internal/backend"
	"diaspora-map/internal/debounce"
	"diaspora-map/internal/models"
	"diaspora-map/internal/proposal"
	"diaspora-map/internal/query"
	"diaspora-map/internal/selection"
	"diaspora-map/internal/urlsync"

	"go.uber.org/zap"
)

var (
	ErrClosed          = errors.New("session closed")
	ErrNotFound        = errors.New("session not found")
	ErrNotReady        = errors.New("data not loaded yet")
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownLocation = errors.New("unknown location")
	ErrInvalidQuery    = errors.New("invalid query string")
)

// DataSource is the shared, cached view of the remote API.
type DataSource interface {
	Categories(notify func(query.Result[[]models.Category])) query.Result[[]models.Category]
	Locations(q backend.LocationQuery, notify func(query.Result[models.FeatureCollection])) query.Result[models.FeatureCollection]
	Reload()
	ClearErrors()
}

// Deps are shared by every session of a Manager.
type Deps struct {
	Data      DataSource
	Submitter proposal.Submitter
	Recorder  proposal.Recorder
	Logger    *zap.Logger

	// SearchDebounce is the quiet period before a typed phrase is fetched.
	SearchDebounce time.Duration
	// AfterFunc replaces time.AfterFunc for the search debouncer.
	AfterFunc debounce.AfterFunc
	// OnProposalOutcome is told about every proposal outcome.
	OnProposalOutcome func(outcome string)
}

// Options seed a new session.
type Options struct {
	// Query is the query string of the initial page load.
	Query url.Values
	// Search is applied as the active search phrase without waiting for the
	// debounce period.
	Search string
}

type event struct {
	fn   func()
	done chan struct{}
}

type Session struct {
	id   string
	deps Deps
	logr *zap.Logger

	events    chan event
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	lastActive atomic.Int64

	// Owned by the event loop.
	store         *selection.Store
	sync          *urlsync.Synchronizer
	search        *debounce.Debouncer[string]
	form          *proposal.Workflow
	activeSearch  string
	searchPending bool
	categories    query.Result[[]models.Category]
	locations     query.Result[models.FeatureCollection]
	reconciledGen uint64
	idleWaiters   []chan struct{}
}

// New starts a session. Close must be called to stop its event loop.
func New(id string, deps Deps, opts Options) *Session {
	logr := deps.Logger
	if logr == nil {
		logr = zap.NewNop()
	}
	logr = logr.With(zap.String("session", id))

	s := &Session{
		id:      id,
		deps:    deps,
		logr:    logr,
		events:  make(chan event, 64),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		store:   selection.NewStore(),
	}
	s.touch()

	s.sync = urlsync.New(s.store, opts.Query, logr)

	var debounceOpts []debounce.Option
	if deps.AfterFunc != nil {
		debounceOpts = append(debounceOpts, debounce.WithAfterFunc(deps.AfterFunc))
	}
	s.search = debounce.New(deps.SearchDebounce, s.onSearchSettled, debounceOpts...)

	s.form = proposal.NewWorkflow(deps.Submitter,
		proposal.WithRecorder(deps.Recorder),
		proposal.WithLogger(logr),
		proposal.WithSessionID(id),
		proposal.OnOutcome(deps.OnProposalOutcome),
	)

	if phrase := strings.TrimSpace(opts.Search); phrase != "" {
		s.store.SetSearchPhrase(opts.Search)
		s.activeSearch = phrase
	}
	s.store.Subscribe(func(c selection.Change) {
		s.logr.Debug("selection changed", zap.String("field", string(c.Field)))
	})

	go s.run()
	s.post(func() {})
	return s
}

func (s *Session) ID() string {
	return s.id
}

// LastActive is the time of the last call made on the session.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case ev := <-s.events:
			ev.fn()
			s.tick()
			if ev.done != nil {
				close(ev.done)
			}
		case <-s.quit:
			s.search.Stop()
			for _, ch := range s.idleWaiters {
				close(ch)
			}
			s.idleWaiters = nil
			return
		}
	}
}

// post queues fn without waiting. Used by callbacks arriving from other
// goroutines; it gives up once the session is closed.
func (s *Session) post(fn func()) {
	select {
	case s.events <- event{fn: fn}:
	case <-s.quit:
	}
}

// do runs fn on the event loop and waits until the tick after it finished.
func (s *Session) do(ctx context.Context, fn func()) error {
	s.touch()
	ev := event{fn: fn, done: make(chan struct{})}
	select {
	case s.events <- ev:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ev.done:
		return nil
	case <-s.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick is the dataflow pass after every event: make sure the data for the
// current selection is requested, drop a selected location that vanished from
// a fresh result, resolve the URL into state and write state back to the URL.
func (s *Session) tick() {
	s.categories = s.deps.Data.Categories(func(query.Result[[]models.Category]) {
		s.post(func() {})
	})
	s.locations = s.deps.Data.Locations(s.locationQuery(), func(query.Result[models.FeatureCollection]) {
		s.post(func() {})
	})

	if s.locations.Loaded() && s.locations.Generation != s.reconciledGen {
		s.reconciledGen = s.locations.Generation
		s.sync.Reconcile(s.locations.Data)
	}

	s.sync.Hydrate(urlsync.Data{
		Categories:       s.categories.Data,
		CategoriesLoaded: s.categories.Loaded(),
		CategoriesGen:    s.categories.Generation,
		Locations:        s.locations.Data,
		LocationsLoaded:  s.locations.Loaded(),
		LocationsGen:     s.locations.Generation,
	})
	if s.sync.Flush() {
		s.logr.Debug("query updated", zap.String("query", s.sync.QueryString()))
	}

	if s.idle() {
		for _, ch := range s.idleWaiters {
			close(ch)
		}
		s.idleWaiters = nil
	}
}

// locationQuery is the location request for the debounced search phrase.
// The category filter is applied locally and never narrows the request.
func (s *Session) locationQuery() backend.LocationQuery {
	return backend.LocationQuery{Search: s.activeSearch}
}

func (s *Session) idle() bool {
	return s.categories.Status != query.StatusPending &&
		s.locations.Status != query.StatusPending &&
		!s.searchPending &&
		s.form.Status() != proposal.StatusSubmitting
}

func (s *Session) onSearchSettled(phrase string) {
	s.post(func() {
		s.activeSearch = phrase
		s.searchPending = false
	})
}

// SelectCategory sets the category filter by slug. An empty slug selects all
// categories.
func (s *Session) SelectCategory(ctx context.Context, slug string) error {
	var err error
	derr := s.do(ctx, func() {
		if slug == "" {
			s.store.SetCategory(nil)
			return
		}
		if !s.categories.Loaded() {
			err = ErrNotReady
			return
		}
		c, ok := models.FindCategoryBySlug(s.categories.Data, slug)
		if !ok {
			err = ErrUnknownCategory
			return
		}
		s.store.SetCategory(c)
	})
	if derr != nil {
		return derr
	}
	return err
}

// SelectCategoryPK sets the category filter by pk; AllCategoriesPK clears it.
func (s *Session) SelectCategoryPK(ctx context.Context, pk int) error {
	var err error
	derr := s.do(ctx, func() {
		if pk == models.AllCategoriesPK {
			s.store.SetCategory(nil)
			return
		}
		if !s.categories.Loaded() {
			err = ErrNotReady
			return
		}
		c, ok := models.FindCategoryByPK(s.categories.Data, pk)
		if !ok {
			err = ErrUnknownCategory
			return
		}
		s.store.SetCategory(c)
	})
	if derr != nil {
		return derr
	}
	return err
}

// SelectLocation selects a location of the current result set. The category
// filter is left as it is.
func (s *Session) SelectLocation(ctx context.Context, pk int) error {
	var err error
	derr := s.do(ctx, func() {
		if !s.locations.Loaded() {
			err = ErrNotReady
			return
		}
		loc, ok := s.locations.Data.FindByPK(pk)
		if !ok {
			err = ErrUnknownLocation
			return
		}
		s.store.SetLocation(loc)
	})
	if derr != nil {
		return derr
	}
	return err
}

// ClearLocation closes the detail panel.
func (s *Session) ClearLocation(ctx context.Context) error {
	return s.do(ctx, func() {
		s.store.SetLocation(nil)
	})
}

// SetSearchPhrase records the phrase as typed. The location request follows
// once the phrase has been stable for the debounce period.
func (s *Session) SetSearchPhrase(ctx context.Context, phrase string) error {
	return s.do(ctx, func() {
		if !s.store.SetSearchPhrase(phrase) {
			return
		}
		s.searchPending = true
		s.search.Set(strings.TrimSpace(phrase))
	})
}

// Navigate applies an external change of the query string.
func (s *Session) Navigate(ctx context.Context, rawQuery string) error {
	q, err := parseQuery(rawQuery)
	if err != nil {
		return err
	}
	return s.do(ctx, func() {
		s.sync.Navigate(q)
	})
}

// Reload refetches categories and locations.
func (s *Session) Reload(ctx context.Context) error {
	return s.do(ctx, func() {
		s.deps.Data.Reload()
	})
}

// OpenProposal shows the proposal form.
func (s *Session) OpenProposal(ctx context.Context) error {
	return s.do(ctx, func() {
		s.form.Open()
	})
}

// SubmitProposal validates and sends a proposal. Validation failures return a
// *proposal.ValidationError; transport failures surface as StatusFailed.
func (s *Session) SubmitProposal(ctx context.Context, form models.ProposalForm) (proposal.Status, error) {
	var (
		req     proposal.Request
		perr    error
		current proposal.Status
	)
	if err := s.do(ctx, func() {
		req, perr = s.form.Prepare(form)
		current = s.form.Status()
	}); err != nil {
		return "", err
	}
	if perr != nil {
		return current, perr
	}

	outcome := s.form.Send(ctx, req)

	// the outcome is applied even if the caller went away meanwhile
	var status proposal.Status
	if err := s.do(context.Background(), func() {
		status = s.form.Complete(outcome)
	}); err != nil {
		return "", err
	}
	return status, nil
}

// View renders the current state.
func (s *Session) View(ctx context.Context) (models.MapView, error) {
	var v models.MapView
	err := s.do(ctx, func() {
		v = s.render()
	})
	return v, err
}

// WaitIdle blocks until no fetch, debounce or submission is outstanding.
func (s *Session) WaitIdle(ctx context.Context) error {
	ch := make(chan struct{})
	if err := s.do(ctx, func() {
		s.idleWaiters = append(s.idleWaiters, ch)
	}); err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-s.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the event loop. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	<-s.stopped
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

func parseQuery(raw string) (url.Values, error) {
	q, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return q, nil
}
