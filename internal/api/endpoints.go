package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// Backend paths, relative to the client's base URL.
const (
	PathLogin           = "/api/login"
	PathStock           = "/api/stock"
	PathAlerts          = "/api/alerts"
	PathProducts        = "/api/products"
	PathForecast        = "/api/forecast"
	PathInsights        = "/api/insights"
	PathUploadInventory = "/api/upload/inventory"
	PathUploadSales     = "/api/upload/sales"
)

// ForecastHorizonDays is the fixed horizon requested for every forecast.
const ForecastHorizonDays = 7

type loginRequest struct {
	UserID string `json:"user_id"`
	PIN    string `json:"pin"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, userID, pin string) (string, Result) {
	res := c.Request(ctx, PathLogin, RequestOptions{
		Method:   http.MethodPost,
		JSONBody: loginRequest{UserID: userID, PIN: pin},
	})
	if !res.OK {
		return "", res
	}
	var token string
	if err := res.Decode("token", &token); err != nil {
		return "", malformed(c, PathLogin, err)
	}
	return token, res
}

// Stock lists inventory records in server order.
func (c *Client) Stock(ctx context.Context) ([]InventoryRecord, Result) {
	var records []InventoryRecord
	res := c.getField(ctx, PathStock, "data", &records)
	if !res.OK {
		return nil, res
	}
	return records, res
}

// Alerts lists current stock and expiry alerts.
func (c *Client) Alerts(ctx context.Context) ([]Alert, Result) {
	var alerts []Alert
	res := c.getField(ctx, PathAlerts, "alerts", &alerts)
	if !res.OK {
		return nil, res
	}
	return alerts, res
}

// Products lists the product names that can be forecast.
func (c *Client) Products(ctx context.Context) ([]string, Result) {
	var products []string
	res := c.getField(ctx, PathProducts, "products", &products)
	if !res.OK {
		return nil, res
	}
	return products, res
}

// Forecast fetches the demand forecast for product over ForecastHorizonDays.
func (c *Client) Forecast(ctx context.Context, product string) (ForecastResult, Result) {
	path := fmt.Sprintf("%s?product=%s&horizon=%d", PathForecast, url.QueryEscape(product), ForecastHorizonDays)
	res := c.Request(ctx, path, RequestOptions{Method: http.MethodGet})
	if !res.OK {
		return ForecastResult{}, res
	}
	var out ForecastResult
	if err := res.DecodeAll(&out); err != nil {
		return ForecastResult{}, malformed(c, path, err)
	}
	return out, res
}

// Insights fetches best and least selling products per period.
func (c *Client) Insights(ctx context.Context) (InsightsResult, Result) {
	res := c.Request(ctx, PathInsights, RequestOptions{Method: http.MethodGet})
	if !res.OK {
		return InsightsResult{}, res
	}
	var out InsightsResult
	if err := res.DecodeAll(&out); err != nil {
		return InsightsResult{}, malformed(c, PathInsights, err)
	}
	return out, res
}

// Upload posts the file at path as the multipart "file" field to endpoint.
// A file that cannot be opened is reported as a transport failure.
func (c *Client) Upload(ctx context.Context, endpoint, path string) Result {
	f, err := os.Open(path)
	if err != nil {
		c.logger.Printf("api: open upload %s: %v", path, err)
		return transportResult()
	}
	defer f.Close()
	return c.Request(ctx, endpoint, RequestOptions{
		Method: http.MethodPost,
		File:   &FileUpload{Name: filepath.Base(path), Reader: f},
	})
}

func (c *Client) getField(ctx context.Context, path, field string, out any) Result {
	res := c.Request(ctx, path, RequestOptions{Method: http.MethodGet})
	if !res.OK {
		return res
	}
	if err := res.Decode(field, out); err != nil {
		return malformed(c, path, err)
	}
	return res
}

func malformed(c *Client, path string, err error) Result {
	c.logger.Printf("api: malformed payload from %s: %v", path, err)
	return transportResult()
}
