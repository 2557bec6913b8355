package dashboard

import (
	"context"

	"github.com/kingrea/smartstock/internal/api"
)

// Fetch performs exactly one backend request and reports its outcome as an
// Event. Fetches never touch orchestrator state; the caller feeds the Event
// back through Apply on the goroutine that owns the Orchestrator.
type Fetch func(ctx context.Context) Event

// Event is the resolved outcome of a Fetch.
type Event interface {
	event()
}

// StockLoaded carries the stock list for the inventory view.
type StockLoaded struct {
	Seq     uint64
	Records []api.InventoryRecord
	Result  api.Result
}

// AlertsLoaded carries the alert list.
type AlertsLoaded struct {
	Seq    uint64
	Alerts []api.Alert
	Result api.Result
}

// ProductsLoaded carries the product names offered by the forecast view.
type ProductsLoaded struct {
	Seq      uint64
	Products []string
	Result   api.Result
}

// ForecastLoaded carries the forecast for one product.
type ForecastLoaded struct {
	Seq      uint64
	Product  string
	Forecast api.ForecastResult
	Result   api.Result
}

// InsightsLoaded carries the aggregated sales insights.
type InsightsLoaded struct {
	Seq      uint64
	Insights api.InsightsResult
	Result   api.Result
}

// SearchCompleted carries the stock list fetched for a search submission.
// Matching happens in Apply.
type SearchCompleted struct {
	Seq     uint64
	Term    string
	Records []api.InventoryRecord
	Result  api.Result
}

// UploadCompleted reports the outcome of a CSV upload.
type UploadCompleted struct {
	Seq      uint64
	Kind     UploadKind
	Endpoint string
	Result   api.Result
}

// LoginCompleted reports the outcome of a login attempt.
type LoginCompleted struct {
	UserID string
	Token  string
	Result api.Result
}

func (StockLoaded) event()     {}
func (AlertsLoaded) event()    {}
func (ProductsLoaded) event()  {}
func (ForecastLoaded) event()  {}
func (InsightsLoaded) event()  {}
func (SearchCompleted) event() {}
func (UploadCompleted) event() {}
func (LoginCompleted) event()  {}
