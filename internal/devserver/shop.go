package devserver

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kingrea/smartstock/internal/api"
)

// ErrUnknownProduct is returned when a forecast names a product the shop has
// never stocked or sold.
var ErrUnknownProduct = errors.New("unknown product")

const (
	rankingSize      = 3
	forecastWindow   = 28
	forecastBandSize = 0.2
)

// Shop is the in-memory state served by the development backend.
type Shop struct {
	mu       sync.RWMutex
	stock    []api.InventoryRecord
	sales    []Sale
	users    map[string][]byte
	today    string
	lowStock float64
	warnDays int
}

// NewShop seeds a shop from fixtures.
func NewShop(fx Fixtures) *Shop {
	users := make(map[string][]byte, len(fx.Users))
	for _, u := range fx.Users {
		users[u.UserID] = []byte(u.PINHash)
	}
	return &Shop{
		stock:    append([]api.InventoryRecord(nil), fx.Stock...),
		sales:    append([]Sale(nil), fx.Sales...),
		users:    users,
		today:    fx.Today,
		lowStock: fx.LowStockThreshold,
		warnDays: fx.ExpiryWarningDays,
	}
}

// Authenticate reports whether pin matches the bcrypt hash of userID.
func (s *Shop) Authenticate(userID, pin string) bool {
	s.mu.RLock()
	hash, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(pin)) == nil
}

// Today returns the reference date, falling back to now.
func (s *Shop) Today(now time.Time) time.Time {
	s.mu.RLock()
	pinned := s.today
	s.mu.RUnlock()
	if pinned != "" {
		if t, err := time.Parse(DateLayout, pinned); err == nil {
			return t
		}
	}
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Stock returns the inventory in insertion order.
func (s *Shop) Stock() []api.InventoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.InventoryRecord{}, s.stock...)
}

// Products returns distinct product names in stock order.
func (s *Shop) Products() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool, len(s.stock))
	out := make([]string, 0, len(s.stock))
	for _, rec := range s.stock {
		if seen[rec.Product] {
			continue
		}
		seen[rec.Product] = true
		out = append(out, rec.Product)
	}
	return out
}

// Alerts derives stock and expiry warnings for every batch.
func (s *Shop) Alerts(today time.Time) []api.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var alerts []api.Alert
	for _, rec := range s.stock {
		left := rec.StockLeft
		switch {
		case left <= 0:
			alerts = append(alerts, api.Alert{Type: api.AlertOutOfStock, Product: rec.Product, BatchID: rec.BatchID, StockLeft: &left})
		case left < s.lowStock:
			alerts = append(alerts, api.Alert{Type: api.AlertLowStock, Product: rec.Product, BatchID: rec.BatchID, StockLeft: &left})
		}
		if rec.ExpiryDate == nil || left <= 0 {
			continue
		}
		expiry, err := time.Parse(DateLayout, *rec.ExpiryDate)
		if err != nil {
			continue
		}
		days := math.Round(expiry.Sub(today).Hours() / 24)
		if days <= float64(s.warnDays) {
			alerts = append(alerts, api.Alert{Type: api.AlertExpirySoon, Product: rec.Product, BatchID: rec.BatchID, DaysLeft: &days})
		}
	}
	return alerts
}

// Forecast projects average daily demand over the last four weeks flat
// across the horizon, with a ±20% band.
func (s *Shop) Forecast(product string, horizon int, today time.Time) (api.ForecastResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	known := false
	for _, rec := range s.stock {
		if strings.EqualFold(rec.Product, product) {
			known = true
			break
		}
	}
	total := 0.0
	windowStart := today.AddDate(0, 0, -(forecastWindow - 1))
	for _, sale := range s.sales {
		if !strings.EqualFold(sale.Product, product) {
			continue
		}
		known = true
		date, err := time.Parse(DateLayout, sale.Date)
		if err != nil || date.Before(windowStart) || date.After(today) {
			continue
		}
		total += sale.Units
	}
	if !known {
		return api.ForecastResult{}, ErrUnknownProduct
	}
	avg := round2(total / forecastWindow)
	points := make([]api.ForecastPoint, 0, horizon)
	for day := 1; day <= horizon; day++ {
		points = append(points, api.ForecastPoint{
			Date:  today.AddDate(0, 0, day).Format(DateLayout),
			Pred:  avg,
			Lower: round2(avg * (1 - forecastBandSize)),
			Upper: round2(avg * (1 + forecastBandSize)),
		})
	}
	return api.ForecastResult{Product: product, HorizonDays: horizon, Forecast: points}, nil
}

// Insights ranks products by units sold today, over the last 7 days and
// over the last 30 days.
func (s *Shop) Insights(today time.Time) api.InsightsResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return api.InsightsResult{
		Daily:   s.rank(today, 1),
		Weekly:  s.rank(today, 7),
		Monthly: s.rank(today, 30),
	}
}

func (s *Shop) rank(today time.Time, days int) api.Ranking {
	start := today.AddDate(0, 0, -(days - 1))
	totals := map[string]float64{}
	for _, sale := range s.sales {
		date, err := time.Parse(DateLayout, sale.Date)
		if err != nil || date.Before(start) || date.After(today) {
			continue
		}
		totals[sale.Product] += sale.Units
	}
	units := make([]api.ProductUnits, 0, len(totals))
	for product, n := range totals {
		units = append(units, api.ProductUnits{Product: product, Units: n})
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].Units != units[j].Units {
			return units[i].Units > units[j].Units
		}
		return units[i].Product < units[j].Product
	})
	ranking := api.Ranking{Best: []api.ProductUnits{}, Least: []api.ProductUnits{}}
	for i := 0; i < len(units) && i < rankingSize; i++ {
		ranking.Best = append(ranking.Best, units[i])
	}
	for i := len(units) - 1; i >= 0 && len(ranking.Least) < rankingSize; i-- {
		ranking.Least = append(ranking.Least, units[i])
	}
	return ranking
}

// ReplaceStock swaps the whole inventory for records.
func (s *Shop) ReplaceStock(records []api.InventoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock = append([]api.InventoryRecord(nil), records...)
}

// RecordSales appends sales to the history and draws units from matching
// batches in stock order, never below zero.
func (s *Shop) RecordSales(sales []Sale) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sale := range sales {
		s.sales = append(s.sales, sale)
		remaining := sale.Units
		for i := range s.stock {
			if remaining <= 0 {
				break
			}
			rec := &s.stock[i]
			if !strings.EqualFold(rec.Product, sale.Product) || rec.StockLeft <= 0 {
				continue
			}
			take := math.Min(rec.StockLeft, remaining)
			rec.StockLeft -= take
			remaining -= take
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
