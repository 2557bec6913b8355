package api

import "strings"

// InventoryRecord is one row of the stock list, in server order.
type InventoryRecord struct {
	Product    string  `json:"product" yaml:"product"`
	BatchID    *string `json:"batch_id,omitempty" yaml:"batch_id,omitempty"`
	StockLeft  float64 `json:"stock_left" yaml:"stock_left"`
	ExpiryDate *string `json:"expiry_date,omitempty" yaml:"expiry_date,omitempty"`
}

// AlertType classifies an alert. Unknown values from the server are kept as-is.
type AlertType string

const (
	AlertOutOfStock AlertType = "out_of_stock"
	AlertLowStock   AlertType = "low_stock"
	AlertExpirySoon AlertType = "expiry_soon"
)

// Alert is a stock or expiry warning. Optional fields are nil when absent.
type Alert struct {
	Type      AlertType `json:"type"`
	Product   string    `json:"product"`
	BatchID   *string   `json:"batch_id,omitempty"`
	StockLeft *float64  `json:"stock_left,omitempty"`
	DaysLeft  *float64  `json:"days_left,omitempty"`
}

// ForecastPoint is one predicted day. Lower <= Pred <= Upper holds in the
// source data but is not checked here.
type ForecastPoint struct {
	Date  string  `json:"date"`
	Pred  float64 `json:"pred"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ForecastResult is the demand forecast for a single product.
type ForecastResult struct {
	Product     string          `json:"product"`
	HorizonDays int             `json:"horizon_days"`
	Forecast    []ForecastPoint `json:"forecast"`
}

// ProductUnits pairs a product with units sold.
type ProductUnits struct {
	Product string  `json:"product"`
	Units   float64 `json:"units"`
}

// Ranking holds best and least selling products for one period.
type Ranking struct {
	Best  []ProductUnits `json:"best"`
	Least []ProductUnits `json:"least"`
}

// InsightsResult aggregates sales rankings per period.
type InsightsResult struct {
	Daily   Ranking `json:"daily"`
	Weekly  Ranking `json:"weekly"`
	Monthly Ranking `json:"monthly"`
}

// ErrProductNotFound is the message carried by a search that matched nothing.
const ErrProductNotFound = "Product not found"

// SearchResult is either a matched record or an error message, never both.
type SearchResult struct {
	Record *InventoryRecord
	Error  string
}

// NotFound reports whether the result carries the error side.
func (r SearchResult) NotFound() bool {
	return r.Record == nil
}

// FindProduct returns the first record whose product equals term ignoring
// case, or the not-found result.
func FindProduct(records []InventoryRecord, term string) SearchResult {
	want := strings.ToLower(term)
	for i := range records {
		if strings.ToLower(records[i].Product) == want {
			rec := records[i]
			return SearchResult{Record: &rec}
		}
	}
	return SearchResult{Error: ErrProductNotFound}
}
