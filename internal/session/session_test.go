package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"diaspora-map/internal/backend"
	"diaspora-map/internal/debounce"
	"diaspora-map/internal/fetcher"
	"diaspora-map/internal/models"
	"diaspora-map/internal/proposal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

var (
	museums  = models.Category{PK: 3, NameSlug: "museums", LabelSingular: "Muzeu", LabelPlural: "Muzee"}
	churches = models.Category{PK: 5, NameSlug: "churches", LabelSingular: "Biserică", LabelPlural: "Biserici"}
)

func feature(pk int, name string, c *models.Category, coords ...float64) models.Location {
	loc := models.Location{
		Type:       "Feature",
		Properties: models.LocationProperties{PK: pk, Name: name, Category: c, Address: strPtr("Berlin")},
	}
	if len(coords) == 2 {
		loc.Geometry = &models.Geometry{Type: "Point", Coordinates: coords}
	}
	return loc
}

func collection(features ...models.Location) models.FeatureCollection {
	fc := models.EmptyFeatureCollection()
	fc.Features = append(fc.Features, features...)
	return fc
}

type fakeSource struct {
	mu         sync.Mutex
	categories []models.Category
	locations  map[string]models.FeatureCollection
	catErr     error
	searches   []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		categories: []models.Category{museums, churches},
		locations: map[string]models.FeatureCollection{
			"": collection(
				feature(42, "Muzeul Diasporei", &museums, 13.40, 52.52),
				feature(7, "Biserica Ortodoxă", &churches, 13.35, 52.49),
				feature(8, "Fără adresă", &churches),
			),
			"biserica": collection(
				feature(7, "Biserica Ortodoxă", &churches, 13.35, 52.49),
			),
		},
	}
}

func (f *fakeSource) FetchCategories(context.Context) ([]models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catErr != nil {
		return nil, f.catErr
	}
	return f.categories, nil
}

func (f *fakeSource) FetchLocations(_ context.Context, q backend.LocationQuery) (models.FeatureCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, q.Search)
	if fc, ok := f.locations[q.Search]; ok {
		return fc, nil
	}
	return models.EmptyFeatureCollection(), nil
}

func (f *fakeSource) setCategoriesErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catErr = err
}

func (f *fakeSource) searched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...)
}

type fakeSubmitter struct {
	mu     sync.Mutex
	status int
	keys   []string
}

func (f *fakeSubmitter) CreateProposal(_ context.Context, _ models.ProposalForm, key string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return f.status, nil
}

// manualTimers collects debounce callbacks so tests decide when the quiet period ends.
type manualTimers struct {
	mu  sync.Mutex
	fns []func()
}

type manualTimer struct{}

func (manualTimer) Stop() bool { return true }

func (m *manualTimers) after(_ time.Duration, f func()) debounce.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns = append(m.fns, f)
	return manualTimer{}
}

func (m *manualTimers) fireLast() {
	m.mu.Lock()
	f := m.fns[len(m.fns)-1]
	m.mu.Unlock()
	f()
}

type harness struct {
	src    *fakeSource
	sub    *fakeSubmitter
	timers *manualTimers
	deps   Deps
}

func newHarness() *harness {
	h := &harness{
		src:    newFakeSource(),
		sub:    &fakeSubmitter{status: http.StatusCreated},
		timers: &manualTimers{},
	}
	h.deps = Deps{
		Data:           fetcher.New(h.src, fetcher.Config{Timeout: time.Second}, nil),
		Submitter:      h.sub,
		SearchDebounce: 600 * time.Millisecond,
		AfterFunc:      h.timers.after,
	}
	return h
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func openSession(t *testing.T, h *harness, raw string) *Session {
	t.Helper()
	m := NewManager(h.deps, 0)
	s, err := m.Create(raw)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	require.NoError(t, s.WaitIdle(testCtx(t)))
	return s
}

func view(t *testing.T, s *Session) models.MapView {
	t.Helper()
	v, err := s.View(testCtx(t))
	require.NoError(t, err)
	return v
}

func TestInitialLoadResolvesSharedLink(t *testing.T) {
	h := newHarness()
	s := openSession(t, h, "category=museums&location=42")

	v := view(t, s)

	assert.Equal(t, ViewReady, v.Status)
	require.NotNil(t, v.Selected)
	assert.Equal(t, "museums", v.Selected.NameSlug)
	require.NotNil(t, v.Detail)
	assert.Equal(t, 42, v.Detail.PK)
	assert.Equal(t, "Muzeu", v.Detail.Category)
	assert.Equal(t, "category=museums&location=42", v.Query, "initial link is left as it was")
	assert.InDelta(t, 52.514, v.Viewport.Latitude, 1e-9)

	require.Len(t, v.Pins, 1, "category filter applies to pins")
	assert.True(t, v.Pins[0].Selected)
	assert.Equal(t, models.CategoryColor(3), v.Pins[0].Color)
}

func TestInitialLoadWithoutParams(t *testing.T) {
	h := newHarness()
	s := openSession(t, h, "")

	v := view(t, s)

	assert.Equal(t, ViewReady, v.Status)
	assert.Empty(t, v.Query)
	assert.Equal(t, models.AllCategoriesPK, v.Selected.PK)
	assert.Nil(t, v.Detail)
	assert.Equal(t, 52.518008, v.Viewport.Latitude)

	require.Len(t, v.Categories, 3)
	assert.Equal(t, "Toate Categoriile", v.Categories[0].LabelPlural)
	assert.Len(t, v.Pins, 2, "non-geocoded features are not pinned")
	assert.Len(t, v.Entries, 3, "but they are listed")
	require.NotNil(t, v.Bounds)
	assert.InDelta(t, 52.49, v.Bounds.South, 1e-9)
	assert.InDelta(t, 52.52, v.Bounds.North, 1e-9)
}

func TestUnknownParamsAreTolerated(t *testing.T) {
	h := newHarness()
	s := openSession(t, h, "category=nope&location=abc&utm=x")

	v := view(t, s)

	assert.Equal(t, ViewReady, v.Status)
	assert.Equal(t, models.AllCategoriesPK, v.Selected.PK)
	assert.Nil(t, v.Detail)
	assert.Equal(t, "category=nope&location=abc&utm=x", v.Query)
	assert.Empty(t, v.ShareQuery)
	assert.Zero(t, v.HistoryLen)
}

func TestSelectionIsWrittenToQuery(t *testing.T) {
	h := newHarness()
	s := openSession(t, h, "utm=x")
	ctx := testCtx(t)

	require.NoError(t, s.SelectCategory(ctx, "churches"))
	assert.Equal(t, "category=churches&utm=x", view(t, s).Query)

	require.NoError(t, s.SelectLocation(ctx, 42))
	v := view(t, s)
	assert.Equal(t, "category=churches&location=42&utm=x", v.Query)
	assert.Equal(t, "category=churches&location=42", v.ShareQuery)
	assert.Equal(t, "churches", v.Selected.NameSlug, "selecting a location keeps the filter")
	require.NotNil(t, v.Detail)
	assert.Equal(t, 42, v.Detail.PK)

	require.NoError(t, s.ClearLocation(ctx))
	require.NoError(t, s.SelectCategoryPK(ctx, models.AllCategoriesPK))
	v = view(t, s)
	assert.Equal(t, "utm=x", v.Query)
	assert.Empty(t, v.ShareQuery)
	assert.Equal(t, 4, v.HistoryLen)
	assert.Nil(t, v.Detail)
}

func TestSelectErrors(t *testing.T) {
	h := newHarness()
	s := openSession(t, h, "")
	ctx := testCtx(t)

	assert.ErrorIs(t, s.SelectCategory(ctx, "bakeries"), ErrUnknownCategory)
	assert.ErrorIs(t, s.SelectCategoryPK(ctx, 99), ErrUnknownCategory)
	assert.ErrorIs(t, s.SelectLocation(ctx, 1000), ErrUnknownLocation)
	assert.Empty(t, view(t, s).Query)
}

func TestSearchIsDebouncedAndDropsStaleLocation(t *testing.T) {
	h := newHarness()
	s := openSession(t, h, "location=42")
	ctx := testCtx(t)

	require.NoError(t, s.SetSearchPhrase(ctx, "  biserica "))
	v := view(t, s)
	assert.Equal(t, "  biserica ", v.SearchPhrase)
	assert.Empty(t, v.ActiveSearch, "no fetch before the quiet period ends")
	assert.NotContains(t, h.src.searched(), "biserica")

	h.timers.fireLast()
	require.NoError(t, s.WaitIdle(ctx))

	v = view(t, s)
	assert.Equal(t, "biserica", v.ActiveSearch)
	assert.Contains(t, h.src.searched(), "biserica")
	assert.Nil(t, v.Detail, "selected location left the result set")
	assert.Empty(t, v.Query)
	require.Len(t, v.Entries, 1)
	assert.Equal(t, 7, v.Entries[0].PK)
}

func TestNavigate(t *testing.T) {
	h := newHarness()
	s := openSession(t, h, "")
	ctx := testCtx(t)

	require.NoError(t, s.Navigate(ctx, "?category=churches&location=7"))
	v := view(t, s)
	assert.Equal(t, "churches", v.Selected.NameSlug)
	require.NotNil(t, v.Detail)
	assert.Equal(t, 7, v.Detail.PK)

	require.NoError(t, s.Navigate(ctx, "category=churches"))
	v = view(t, s)
	require.NotNil(t, v.Detail, "state outlives a link without the parameter")
	assert.Equal(t, "category=churches&location=7", v.Query)
}

func TestErrorStateAndReload(t *testing.T) {
	h := newHarness()
	h.src.setCategoriesErr(errors.New("categories down"))
	s := openSession(t, h, "")
	ctx := testCtx(t)

	v := view(t, s)
	assert.Equal(t, ViewError, v.Status)
	assert.Contains(t, v.Error, "categories down")
	assert.Len(t, v.Categories, 1, "only the sentinel while categories are missing")

	h.src.setCategoriesErr(nil)
	require.NoError(t, s.Reload(ctx))
	require.NoError(t, s.WaitIdle(ctx))

	v = view(t, s)
	assert.Equal(t, ViewReady, v.Status)
	assert.Len(t, v.Categories, 3)
}

func TestProposalFlow(t *testing.T) {
	h := newHarness()
	var outcomes []string
	var mu sync.Mutex
	h.deps.OnProposalOutcome = func(o string) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, o)
	}
	s := openSession(t, h, "")
	ctx := testCtx(t)

	status, err := s.SubmitProposal(ctx, models.ProposalForm{Address: "X"})
	var verr *proposal.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, proposal.StatusEditing, status)
	assert.Contains(t, view(t, s).Proposal.Errors, "name")

	status, err = s.SubmitProposal(ctx, models.ProposalForm{Name: "Librărie", Address: "Kastanienallee 5"})
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusSubmitted, status)
	assert.Len(t, h.sub.keys, 1)

	require.NoError(t, s.OpenProposal(ctx))
	v := view(t, s)
	assert.Equal(t, string(proposal.StatusEditing), v.Proposal.Status)
	assert.Empty(t, v.Proposal.Form.Name)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{proposal.OutcomeInvalid, proposal.OutcomeSubmitted}, outcomes)
}

func TestClosedSession(t *testing.T) {
	h := newHarness()
	s := New("s-1", h.deps, Options{})
	s.Close()
	s.Close()

	assert.True(t, s.Closed())
	_, err := s.View(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFromContext(t *testing.T) {
	h := newHarness()
	s := New("s-1", h.deps, Options{})
	defer s.Close()

	assert.Same(t, s, FromContext(NewContext(context.Background(), s)))
	assert.Panics(t, func() { FromContext(context.Background()) })
}
