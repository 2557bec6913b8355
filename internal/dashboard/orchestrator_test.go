package dashboard

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kingrea/smartstock/internal/api"
	"github.com/kingrea/smartstock/internal/view"
)

var okResult = api.Result{OK: true}

// fakeBackend answers from canned data and records each call as
// "<method>[:arg]".
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	stock     []api.InventoryRecord
	stockRes  api.Result
	alerts    []api.Alert
	products  []string
	forecasts map[string]api.ForecastResult
	insights  api.InsightsResult
	uploadRes api.Result
	failWith  *api.Result
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{stockRes: okResult, uploadRes: okResult, forecasts: map[string]api.ForecastResult{}}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) result() api.Result {
	if f.failWith != nil {
		return *f.failWith
	}
	return okResult
}

func (f *fakeBackend) Stock(context.Context) ([]api.InventoryRecord, api.Result) {
	f.record("stock")
	if f.failWith != nil {
		return nil, *f.failWith
	}
	if !f.stockRes.OK {
		return nil, f.stockRes
	}
	return f.stock, f.stockRes
}

func (f *fakeBackend) Alerts(context.Context) ([]api.Alert, api.Result) {
	f.record("alerts")
	return f.alerts, f.result()
}

func (f *fakeBackend) Products(context.Context) ([]string, api.Result) {
	f.record("products")
	return f.products, f.result()
}

func (f *fakeBackend) Forecast(_ context.Context, product string) (api.ForecastResult, api.Result) {
	f.record("forecast:" + product)
	return f.forecasts[product], f.result()
}

func (f *fakeBackend) Insights(context.Context) (api.InsightsResult, api.Result) {
	f.record("insights")
	return f.insights, f.result()
}

func (f *fakeBackend) Upload(_ context.Context, endpoint, path string) api.Result {
	f.record("upload:" + endpoint)
	return f.uploadRes
}

// run executes fetches in order and applies their events, returning any
// follow-up fetches.
func run(o *Orchestrator, fetches []Fetch) []Fetch {
	var follow []Fetch
	for _, fetch := range fetches {
		follow = append(follow, o.Apply(fetch(context.Background()))...)
	}
	return follow
}

func strPtr(s string) *string { return &s }

func TestSelectIssuesExactlyTheViewsFetchSet(t *testing.T) {
	cases := []struct {
		view view.View
		want []string
	}{
		{view.Inventory, []string{"stock"}},
		{view.Alerts, []string{"alerts"}},
		{view.Forecast, []string{"products"}},
		{view.Insights, []string{"insights"}},
		{view.Search, nil},
	}
	for _, tc := range cases {
		t.Run(tc.view.String(), func(t *testing.T) {
			backend := newFakeBackend()
			o := New(backend)
			fetches, err := o.Select(tc.view)
			require.NoError(t, err)
			require.Len(t, fetches, len(tc.want))
			run(o, fetches)
			require.Equal(t, tc.want, backend.Calls())
			require.Equal(t, tc.view, o.State().Active)
		})
	}
}

func TestSelectUnknownViewKeepsActive(t *testing.T) {
	o := New(newFakeBackend(), WithInitialView(view.Alerts))
	fetches, err := o.Select(view.View(42))
	require.ErrorIs(t, err, view.ErrUnknownView)
	require.Nil(t, fetches)
	require.Equal(t, view.Alerts, o.Active())
}

func TestStartFetchesInitialView(t *testing.T) {
	backend := newFakeBackend()
	o := New(backend, WithInitialView(view.Insights))
	run(o, o.Start())
	require.Equal(t, []string{"insights"}, backend.Calls())
	require.True(t, o.State().Loaded(ResourceInsights))
}

func TestReselectReplacesCachedState(t *testing.T) {
	backend := newFakeBackend()
	backend.stock = []api.InventoryRecord{{Product: "Rice", StockLeft: 5}, {Product: "Milk", StockLeft: 2}}
	o := New(backend)
	run(o, o.Start())
	require.Len(t, o.State().Inventory, 2)

	backend.stock = []api.InventoryRecord{{Product: "Bread", StockLeft: 9}}
	fetches, err := o.Select(view.Inventory)
	require.NoError(t, err)
	run(o, fetches)
	require.Equal(t, []api.InventoryRecord{{Product: "Bread", StockLeft: 9}}, o.State().Inventory)
}

func TestSwitchingViewsKeepsOtherCaches(t *testing.T) {
	backend := newFakeBackend()
	backend.stock = []api.InventoryRecord{{Product: "Rice", StockLeft: 5}}
	backend.alerts = []api.Alert{{Type: api.AlertOutOfStock, Product: "Milk"}}
	o := New(backend)
	run(o, o.Start())
	fetches, _ := o.Select(view.Alerts)
	run(o, fetches)

	st := o.State()
	require.Len(t, st.Inventory, 1)
	require.Len(t, st.Alerts, 1)
}

func TestSearchScenario(t *testing.T) {
	backend := newFakeBackend()
	backend.stock = []api.InventoryRecord{{Product: "Rice", BatchID: strPtr("B7"), StockLeft: 12}}
	o := New(backend)
	_, err := o.Select(view.Search)
	require.NoError(t, err)

	run(o, o.Search("rice"))
	res := o.State().SearchResult
	require.NotNil(t, res)
	require.False(t, res.NotFound())
	require.Equal(t, "Rice", res.Record.Product)

	run(o, o.Search("Wheat"))
	res = o.State().SearchResult
	require.True(t, res.NotFound())
	require.Equal(t, "Product not found", res.Error)
	require.Nil(t, res.Record)

	require.Equal(t, []string{"stock", "stock"}, backend.Calls())
	require.Empty(t, o.State().Inventory, "search must not touch the inventory cache")
}

func TestSearchFirstMatchWinsForAnyCasing(t *testing.T) {
	backend := newFakeBackend()
	backend.stock = []api.InventoryRecord{
		{Product: "Oats", BatchID: strPtr("1")},
		{Product: "MILK", BatchID: strPtr("2")},
		{Product: "milk", BatchID: strPtr("3")},
	}
	o := New(backend)
	for _, term := range []string{"milk", "Milk", "MILK", "mIlK"} {
		run(o, o.Search(term))
		res := o.State().SearchResult
		require.False(t, res.NotFound(), term)
		require.Equal(t, "2", *res.Record.BatchID, term)
	}
}

func TestSelectProductRequiresForecastView(t *testing.T) {
	backend := newFakeBackend()
	o := New(backend)
	fetches, err := o.SelectProduct("Rice")
	require.ErrorIs(t, err, ErrNotForecastView)
	require.Nil(t, fetches)
	require.Empty(t, o.State().SelectedProduct)
	require.Empty(t, backend.Calls())
}

func TestSelectProductFetchesForecast(t *testing.T) {
	backend := newFakeBackend()
	backend.forecasts["Rice"] = api.ForecastResult{Product: "Rice", HorizonDays: 7,
		Forecast: []api.ForecastPoint{{Date: "2025-01-02", Pred: 4, Lower: 3, Upper: 5}}}
	o := New(backend, WithInitialView(view.Forecast))
	run(o, o.Start())

	fetches, err := o.SelectProduct("Rice")
	require.NoError(t, err)
	require.Len(t, fetches, 1)
	run(o, fetches)

	st := o.State()
	require.Equal(t, "Rice", st.SelectedProduct)
	require.NotNil(t, st.Forecast)
	require.Equal(t, 7, st.Forecast.HorizonDays)
	require.Equal(t, []string{"products", "forecast:Rice"}, backend.Calls())
}

func TestEmptyProductClearsForecastWithoutFetching(t *testing.T) {
	backend := newFakeBackend()
	backend.forecasts["Rice"] = api.ForecastResult{Product: "Rice", HorizonDays: 7}
	o := New(backend, WithInitialView(view.Forecast))
	fetches, _ := o.SelectProduct("Rice")
	run(o, fetches)
	require.NotNil(t, o.State().Forecast)

	before := len(backend.Calls())
	fetches, err := o.SelectProduct("")
	require.NoError(t, err)
	require.Empty(t, fetches)
	require.Nil(t, o.State().Forecast)
	require.False(t, o.State().Loaded(ResourceForecast))
	require.Len(t, backend.Calls(), before)
}

func forecastRace(t *testing.T, opts ...Option) State {
	t.Helper()
	backend := newFakeBackend()
	backend.forecasts["A"] = api.ForecastResult{Product: "A", HorizonDays: 7}
	backend.forecasts["B"] = api.ForecastResult{Product: "B", HorizonDays: 7}
	o := New(backend, append(opts, WithInitialView(view.Forecast))...)

	fetchA, err := o.SelectProduct("A")
	require.NoError(t, err)
	fetchB, err := o.SelectProduct("B")
	require.NoError(t, err)
	require.True(t, o.State().Loading(ResourceForecast))

	// B resolves first, A last.
	eventB := fetchB[0](context.Background())
	eventA := fetchA[0](context.Background())
	o.Apply(eventB)
	o.Apply(eventA)

	st := o.State()
	require.False(t, st.Loading(ResourceForecast))
	require.Equal(t, "B", st.SelectedProduct)
	return st
}

func TestForecastRaceLastResolvedWins(t *testing.T) {
	st := forecastRace(t)
	require.Equal(t, "A", st.Forecast.Product)
}

func TestForecastRaceWithFencingKeepsLatestIssued(t *testing.T) {
	st := forecastRace(t, WithSequenceFencing())
	require.Equal(t, "B", st.Forecast.Product)
}

func TestFencingDropsForecastAfterBlankSelection(t *testing.T) {
	backend := newFakeBackend()
	backend.forecasts["A"] = api.ForecastResult{Product: "A"}
	o := New(backend, WithSequenceFencing(), WithInitialView(view.Forecast))
	fetches, _ := o.SelectProduct("A")
	_, _ = o.SelectProduct("")
	run(o, fetches)
	require.Nil(t, o.State().Forecast)
}

func TestFailedFetchLeavesStateAndNotifies(t *testing.T) {
	backend := newFakeBackend()
	backend.alerts = []api.Alert{{Type: api.AlertLowStock, Product: "Milk"}}
	o := New(backend, WithInitialView(view.Alerts))
	run(o, o.Start())
	require.Len(t, o.State().Alerts, 1)

	backend.failWith = &api.Result{Error: "database offline"}
	fetches, _ := o.Select(view.Alerts)
	run(o, fetches)
	st := o.State()
	require.Len(t, st.Alerts, 1)
	require.Equal(t, &Notification{Level: LevelError, Text: "database offline"}, st.Notification)

	backend.failWith = &api.Result{Error: api.TransportFailure, Transport: true}
	fetches, _ = o.Select(view.Alerts)
	run(o, fetches)
	st = o.State()
	require.Len(t, st.Alerts, 1)
	require.Equal(t, MsgFetchFailed, st.Notification.Text)
	require.False(t, st.ViewLoading(view.Alerts))
}

func TestPendingRequestKeepsViewLoading(t *testing.T) {
	o := New(newFakeBackend())
	fetches := o.Start()
	require.Len(t, fetches, 1)
	require.True(t, o.State().ViewLoading(view.Inventory))
	require.False(t, o.State().Loaded(ResourceInventory))
}

func TestStateIsACopy(t *testing.T) {
	backend := newFakeBackend()
	backend.stock = []api.InventoryRecord{{Product: "Rice"}}
	o := New(backend)
	run(o, o.Start())

	st := o.State()
	st.Inventory[0].Product = "mutated"
	require.Equal(t, "Rice", o.State().Inventory[0].Product)
}

func TestUploadSuccessRefreshesInventoryOnce(t *testing.T) {
	for _, kind := range []UploadKind{UploadInventory, UploadSales} {
		t.Run(string(kind), func(t *testing.T) {
			backend := newFakeBackend()
			backend.stock = []api.InventoryRecord{{Product: "Rice", StockLeft: 1}}
			o := New(backend)

			fetch, err := o.Upload(kind, "/tmp/data.csv")
			require.NoError(t, err)
			follow := o.Apply(fetch(context.Background()))
			require.Len(t, follow, 1)
			require.Empty(t, run(o, follow))

			endpoint, _ := kind.Endpoint()
			require.Equal(t, []string{"upload:" + endpoint, "stock"}, backend.Calls())
			st := o.State()
			require.Equal(t, fmt.Sprintf("%s upload successful ✅", endpoint), st.Notification.Text)
			require.Equal(t, LevelSuccess, st.Notification.Level)
			require.Len(t, st.Inventory, 1)
			require.False(t, st.Loading(ResourceUpload))
		})
	}
}

func TestUploadFailureNeverMutatesInventory(t *testing.T) {
	cases := map[string]struct {
		res  api.Result
		want string
	}{
		"rejected":  {api.Result{Error: "missing column stock_left"}, "Upload failed: missing column stock_left"},
		"no reason": {api.Result{}, "Upload failed: no reason given"},
		"transport": {api.Result{Error: api.TransportFailure, Transport: true}, MsgUploadTransport},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.stock = []api.InventoryRecord{{Product: "Rice", StockLeft: 4}}
			o := New(backend)
			run(o, o.Start())

			backend.uploadRes = tc.res
			backend.stock = nil
			fetch, err := o.Upload(UploadSales, "sales.csv")
			require.NoError(t, err)
			require.Empty(t, o.Apply(fetch(context.Background())))

			st := o.State()
			require.Equal(t, []api.InventoryRecord{{Product: "Rice", StockLeft: 4}}, st.Inventory)
			require.Equal(t, tc.want, st.Notification.Text)
			require.Equal(t, []string{"stock", "upload:" + api.PathUploadSales}, backend.Calls())
		})
	}
}

func TestUploadUnknownKind(t *testing.T) {
	o := New(newFakeBackend())
	fetch, err := o.Upload(UploadKind("returns"), "x.csv")
	require.ErrorIs(t, err, ErrUnknownUploadKind)
	require.Nil(t, fetch)
	require.False(t, o.State().Loading(ResourceUpload))

	kind, err := ParseUploadKind(" Sales ")
	require.NoError(t, err)
	require.Equal(t, UploadSales, kind)
}

func TestRefreshSearchRepeatsLastTerm(t *testing.T) {
	backend := newFakeBackend()
	o := New(backend)
	require.Empty(t, o.Refresh(view.Search))
	run(o, o.Search("Rice"))
	run(o, o.Refresh(view.Search))
	require.Equal(t, []string{"stock", "stock"}, backend.Calls())
	require.Equal(t, view.Inventory, o.Active(), "refresh must not change the active view")
}

func TestNextAndPrevWrap(t *testing.T) {
	backend := newFakeBackend()
	o := New(backend, WithInitialView(view.Search))
	run(o, o.Next())
	require.Equal(t, view.Inventory, o.Active())
	run(o, o.Prev())
	require.Equal(t, view.Search, o.Active())
	require.Equal(t, []string{"stock"}, backend.Calls())
}

type lineLog struct{ lines []string }

func (l *lineLog) Printf(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestFencingLogsDiscardedResponses(t *testing.T) {
	backend := newFakeBackend()
	logs := &lineLog{}
	o := New(backend, WithSequenceFencing(), WithLogger(logs))
	first := o.Start()
	second := o.Refresh(view.Inventory)
	run(o, second)
	run(o, first)
	require.Len(t, logs.lines, 1)
	require.Contains(t, logs.lines[0], "discarded stale inventory response seq=1 latest=2")
	require.False(t, o.State().Loading(ResourceInventory))
}
