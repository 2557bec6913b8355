// Package dashboard holds the client-side state of the SmartStock dashboard.
//
// The Orchestrator decides which backend resource each view needs, keeps the
// last successful result per view and reconciles responses as they resolve.
// It performs no I/O: operations hand back Fetches, and whoever runs them
// reports the resulting Events through Apply. All mutation therefore happens
// on the caller's goroutine.
package dashboard

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/kingrea/smartstock/internal/api"
	"github.com/kingrea/smartstock/internal/view"
)

// ErrNotForecastView is returned when a product is selected outside the
// forecast view.
var ErrNotForecastView = errors.New("dashboard: product selection requires the forecast view")

// Generic texts for transport failures. Application errors are shown verbatim.
const (
	MsgFetchFailed     = "Could not reach the server"
	MsgUploadTransport = "Error uploading file"
)

// Backend is the subset of the API client the orchestrator depends on.
type Backend interface {
	Stock(ctx context.Context) ([]api.InventoryRecord, api.Result)
	Alerts(ctx context.Context) ([]api.Alert, api.Result)
	Products(ctx context.Context) ([]string, api.Result)
	Forecast(ctx context.Context, product string) (api.ForecastResult, api.Result)
	Insights(ctx context.Context) (api.InsightsResult, api.Result)
	Upload(ctx context.Context, endpoint, path string) api.Result
}

// Logger receives diagnostic lines. *logging.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

// Resource identifies one independently cached slot of state.
type Resource int

const (
	ResourceInventory Resource = iota
	ResourceAlerts
	ResourceProducts
	ResourceForecast
	ResourceInsights
	ResourceSearch
	ResourceUpload
)

func (r Resource) String() string {
	switch r {
	case ResourceInventory:
		return "inventory"
	case ResourceAlerts:
		return "alerts"
	case ResourceProducts:
		return "products"
	case ResourceForecast:
		return "forecast"
	case ResourceInsights:
		return "insights"
	case ResourceSearch:
		return "search"
	case ResourceUpload:
		return "upload"
	default:
		return "unknown"
	}
}

// Level grades a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

// Notification is the latest user-facing message.
type Notification struct {
	Level Level
	Text  string
}

// State is a snapshot of everything the presentation layer may render.
type State struct {
	Active view.View

	Inventory       []api.InventoryRecord
	Alerts          []api.Alert
	Products        []string
	SelectedProduct string
	Forecast        *api.ForecastResult
	Insights        *api.InsightsResult
	SearchTerm      string
	SearchResult    *api.SearchResult

	Notification *Notification

	pending map[Resource]int
	loaded  map[Resource]bool
}

// Loading reports whether a request for r is still outstanding.
func (s State) Loading(r Resource) bool {
	return s.pending[r] > 0
}

// Loaded reports whether r has received at least one successful response.
func (s State) Loaded(r Resource) bool {
	return s.loaded[r]
}

// ViewLoading reports whether the data shown by v is being fetched.
func (s State) ViewLoading(v view.View) bool {
	switch v {
	case view.Inventory:
		return s.Loading(ResourceInventory)
	case view.Alerts:
		return s.Loading(ResourceAlerts)
	case view.Forecast:
		return s.Loading(ResourceProducts) || s.Loading(ResourceForecast)
	case view.Insights:
		return s.Loading(ResourceInsights)
	case view.Search:
		return s.Loading(ResourceSearch)
	}
	return false
}

func (s State) clone() State {
	out := s
	out.Inventory = slices.Clone(s.Inventory)
	out.Alerts = slices.Clone(s.Alerts)
	out.Products = slices.Clone(s.Products)
	if s.Forecast != nil {
		fc := *s.Forecast
		fc.Forecast = slices.Clone(s.Forecast.Forecast)
		out.Forecast = &fc
	}
	if s.Insights != nil {
		in := *s.Insights
		out.Insights = &in
	}
	if s.SearchResult != nil {
		sr := *s.SearchResult
		out.SearchResult = &sr
	}
	if s.Notification != nil {
		n := *s.Notification
		out.Notification = &n
	}
	out.pending = make(map[Resource]int, len(s.pending))
	for k, v := range s.pending {
		out.pending[k] = v
	}
	out.loaded = make(map[Resource]bool, len(s.loaded))
	for k, v := range s.loaded {
		out.loaded[k] = v
	}
	return out
}

// Orchestrator is the single writer of dashboard State.
type Orchestrator struct {
	backend  Backend
	selector *view.Selector
	state    State
	issued   map[Resource]uint64
	fencing  bool
	logger   Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSequenceFencing discards any response that is not the latest issued
// request for its resource. Without it the last response to resolve wins.
func WithSequenceFencing() Option {
	return func(o *Orchestrator) {
		o.fencing = true
	}
}

// WithLogger routes diagnostics to logger.
func WithLogger(logger Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithInitialView sets the view active before the first Select.
func WithInitialView(v view.View) Option {
	return func(o *Orchestrator) {
		o.selector = view.NewSelector(v)
	}
}

// New creates an orchestrator. Nothing is fetched until Start or Select.
func New(backend Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:  backend,
		selector: view.NewSelector(view.Inventory),
		issued:   make(map[Resource]uint64),
		logger:   nopLogger{},
		state: State{
			pending: make(map[Resource]int),
			loaded:  make(map[Resource]bool),
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.state.Active = o.selector.Active()
	return o
}

// State returns a copy of the current state.
func (o *Orchestrator) State() State {
	return o.state.clone()
}

// Active returns the selected view.
func (o *Orchestrator) Active() view.View {
	return o.selector.Active()
}

// Fencing reports whether stale responses are discarded.
func (o *Orchestrator) Fencing() bool {
	return o.fencing
}

// Start enters the initial view.
func (o *Orchestrator) Start() []Fetch {
	fetches, _ := o.Select(o.selector.Active())
	return fetches
}

// Select makes v the active view and returns the fetches that view needs.
// Re-selecting the active view fetches again.
func (o *Orchestrator) Select(v view.View) ([]Fetch, error) {
	if err := o.selector.Select(v); err != nil {
		return nil, err
	}
	o.state.Active = v
	return o.fetchesFor(v), nil
}

// Next selects the view after the active one.
func (o *Orchestrator) Next() []Fetch {
	fetches, _ := o.Select(o.selector.Next())
	return fetches
}

// Prev selects the view before the active one.
func (o *Orchestrator) Prev() []Fetch {
	fetches, _ := o.Select(o.selector.Prev())
	return fetches
}

// Refresh re-issues the fetches of v without changing the active view. For
// the search view it repeats the last submitted search, if any.
func (o *Orchestrator) Refresh(v view.View) []Fetch {
	if v == view.Search {
		if o.state.SearchTerm == "" {
			return nil
		}
		return []Fetch{o.searchFetch(o.state.SearchTerm)}
	}
	return o.fetchesFor(v)
}

// SelectProduct chooses the product to forecast. A blank name clears the
// forecast and fetches nothing.
func (o *Orchestrator) SelectProduct(name string) ([]Fetch, error) {
	if o.selector.Active() != view.Forecast {
		return nil, ErrNotForecastView
	}
	o.state.SelectedProduct = name
	if strings.TrimSpace(name) == "" {
		o.state.Forecast = nil
		o.state.loaded[ResourceForecast] = false
		// Outstanding forecast responses no longer match the selection.
		o.issued[ResourceForecast]++
		return nil, nil
	}
	seq := o.issue(ResourceForecast)
	backend := o.backend
	return []Fetch{func(ctx context.Context) Event {
		fc, res := backend.Forecast(ctx, name)
		return ForecastLoaded{Seq: seq, Product: name, Forecast: fc, Result: res}
	}}, nil
}

// Search records term and fetches the stock list to match it against.
func (o *Orchestrator) Search(term string) []Fetch {
	o.state.SearchTerm = term
	return []Fetch{o.searchFetch(term)}
}

// Apply folds a resolved Event into the state. It returns follow-up fetches,
// which is only ever a single inventory refresh after a successful upload.
func (o *Orchestrator) Apply(ev Event) []Fetch {
	switch e := ev.(type) {
	case StockLoaded:
		if o.settle(ResourceInventory, e.Seq, e.Result) {
			o.state.Inventory = e.Records
		}
	case AlertsLoaded:
		if o.settle(ResourceAlerts, e.Seq, e.Result) {
			o.state.Alerts = e.Alerts
		}
	case ProductsLoaded:
		if o.settle(ResourceProducts, e.Seq, e.Result) {
			o.state.Products = e.Products
		}
	case ForecastLoaded:
		if o.settle(ResourceForecast, e.Seq, e.Result) {
			fc := e.Forecast
			o.state.Forecast = &fc
		}
	case InsightsLoaded:
		if o.settle(ResourceInsights, e.Seq, e.Result) {
			in := e.Insights
			o.state.Insights = &in
		}
	case SearchCompleted:
		if o.settle(ResourceSearch, e.Seq, e.Result) {
			found := api.FindProduct(e.Records, e.Term)
			o.state.SearchResult = &found
		}
	case UploadCompleted:
		return o.applyUpload(e)
	}
	return nil
}

// Notify replaces the current notification.
func (o *Orchestrator) Notify(level Level, text string) {
	o.state.Notification = &Notification{Level: level, Text: text}
}

// DismissNotification clears the current notification.
func (o *Orchestrator) DismissNotification() {
	o.state.Notification = nil
}

func (o *Orchestrator) fetchesFor(v view.View) []Fetch {
	backend := o.backend
	switch v {
	case view.Inventory:
		seq := o.issue(ResourceInventory)
		return []Fetch{func(ctx context.Context) Event {
			records, res := backend.Stock(ctx)
			return StockLoaded{Seq: seq, Records: records, Result: res}
		}}
	case view.Alerts:
		seq := o.issue(ResourceAlerts)
		return []Fetch{func(ctx context.Context) Event {
			alerts, res := backend.Alerts(ctx)
			return AlertsLoaded{Seq: seq, Alerts: alerts, Result: res}
		}}
	case view.Forecast:
		seq := o.issue(ResourceProducts)
		return []Fetch{func(ctx context.Context) Event {
			products, res := backend.Products(ctx)
			return ProductsLoaded{Seq: seq, Products: products, Result: res}
		}}
	case view.Insights:
		seq := o.issue(ResourceInsights)
		return []Fetch{func(ctx context.Context) Event {
			in, res := backend.Insights(ctx)
			return InsightsLoaded{Seq: seq, Insights: in, Result: res}
		}}
	}
	return nil
}

func (o *Orchestrator) searchFetch(term string) Fetch {
	seq := o.issue(ResourceSearch)
	backend := o.backend
	return func(ctx context.Context) Event {
		records, res := backend.Stock(ctx)
		return SearchCompleted{Seq: seq, Term: term, Records: records, Result: res}
	}
}

func (o *Orchestrator) issue(r Resource) uint64 {
	o.issued[r]++
	o.state.pending[r]++
	return o.issued[r]
}

// settle records that a response for r arrived and reports whether its
// payload should replace the cached value.
func (o *Orchestrator) settle(r Resource, seq uint64, res api.Result) bool {
	if o.state.pending[r] > 0 {
		o.state.pending[r]--
	}
	if o.fencing && seq != o.issued[r] {
		o.logger.Printf("dashboard: discarded stale %s response seq=%d latest=%d", r, seq, o.issued[r])
		return false
	}
	if !res.OK {
		o.logger.Printf("dashboard: %s fetch failed: %s", r, res.Error)
		o.Notify(LevelError, failureText(res))
		return false
	}
	o.state.loaded[r] = true
	return true
}

func failureText(res api.Result) string {
	if res.Transport || res.Error == "" {
		return MsgFetchFailed
	}
	return res.Error
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
