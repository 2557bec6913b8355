package devserver

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kingrea/smartstock/internal/api"
	"github.com/kingrea/smartstock/internal/config"
	"github.com/kingrea/smartstock/internal/session"
)

func TestSettingsFromConfigHonorsEnv(t *testing.T) {
	t.Setenv("SMARTSTOCK_DEVSERVER_PORT", "9001")
	t.Setenv("SMARTSTOCK_DEVSERVER_HOST", "0.0.0.0")
	t.Setenv("SMARTSTOCK_DEVSERVER_SECRET", "s3cret")
	settings := SettingsFromConfig(nil)
	if settings.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", settings.Port)
	}
	if settings.Host != "0.0.0.0" {
		t.Fatalf("expected host override, got %s", settings.Host)
	}
	if settings.Secret != "s3cret" {
		t.Fatalf("expected secret override")
	}
}

func TestSettingsFromConfigUsesConfigFile(t *testing.T) {
	t.Setenv("SMARTSTOCK_DEVSERVER_PORT", "")
	t.Setenv("SMARTSTOCK_DEVSERVER_HOST", "")
	home := t.TempDir()
	body := "devserver:\n  port: 9100\n  fixtures: shop.yaml\n"
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(home)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	settings := SettingsFromConfig(cfg)
	if settings.Port != 9100 || settings.Fixtures != filepath.Join(home, "shop.yaml") {
		t.Fatalf("unexpected settings %+v", settings)
	}
}

func startServer(t *testing.T) (*Server, *api.Client) {
	t.Helper()
	fx, err := DefaultFixtures()
	if err != nil {
		t.Fatalf("fixtures: %v", err)
	}
	fixed := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	settings := Settings{Host: "127.0.0.1", Port: 0, MaxBodyBytes: 1 << 16, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	srv := NewServer(settings, NewShop(fx), WithClock(func() time.Time { return fixed }))
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	return srv, api.New(srv.BaseURL(), api.WithTimeout(5*time.Second))
}

func TestServerHealth(t *testing.T) {
	srv, _ := startServer(t)
	resp, err := http.Get(srv.BaseURL() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", resp.StatusCode)
	}
	if srv.Status() != StatusReady {
		t.Fatalf("status = %s", srv.Status())
	}
}

func TestClientAgainstDevServer(t *testing.T) {
	_, client := startServer(t)
	ctx := context.Background()

	token, res := client.Login(ctx, "admin", "1234")
	if !res.OK || token == "" {
		t.Fatalf("login failed: %+v", res)
	}
	exp, ok := session.ExpiresAt(token)
	if !ok || !exp.Equal(time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC)) {
		t.Fatalf("token expiry = %s, %t", exp, ok)
	}
	if _, res := client.Login(ctx, "admin", "9999"); res.OK || res.Transport || res.Error == "" {
		t.Fatalf("bad pin should be an application error, got %+v", res)
	}

	stock, res := client.Stock(ctx)
	if !res.OK || len(stock) != 5 || stock[0].Product != "Rice" {
		t.Fatalf("stock = %+v, %+v", stock, res)
	}
	alerts, res := client.Alerts(ctx)
	if !res.OK || len(alerts) == 0 {
		t.Fatalf("alerts = %+v, %+v", alerts, res)
	}
	products, res := client.Products(ctx)
	if !res.OK || len(products) != 5 {
		t.Fatalf("products = %v", products)
	}
	fc, res := client.Forecast(ctx, "Milk")
	if !res.OK || fc.HorizonDays != api.ForecastHorizonDays || len(fc.Forecast) != api.ForecastHorizonDays {
		t.Fatalf("forecast = %+v, %+v", fc, res)
	}
	if _, res := client.Forecast(ctx, "Caviar"); res.OK || res.Transport {
		t.Fatalf("unknown product should be an application error, got %+v", res)
	}
	in, res := client.Insights(ctx)
	if !res.OK || len(in.Daily.Best) == 0 {
		t.Fatalf("insights = %+v, %+v", in, res)
	}
}

func TestUploadsMutateStock(t *testing.T) {
	_, client := startServer(t)
	ctx := context.Background()
	dir := t.TempDir()

	inventory := filepath.Join(dir, "inventory.csv")
	if err := os.WriteFile(inventory, []byte("product,batch_id,stock_left,expiry_date\nTea,T1,10,2025-12-01\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if res := client.Upload(ctx, api.PathUploadInventory, inventory); !res.OK {
		t.Fatalf("inventory upload: %+v", res)
	}
	sales := filepath.Join(dir, "sales.csv")
	if err := os.WriteFile(sales, []byte("date,product,units\n2025-03-10,Tea,4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if res := client.Upload(ctx, api.PathUploadSales, sales); !res.OK {
		t.Fatalf("sales upload: %+v", res)
	}
	stock, res := client.Stock(ctx)
	if !res.OK || len(stock) != 1 || stock[0].Product != "Tea" || stock[0].StockLeft != 6 {
		t.Fatalf("stock after uploads = %+v", stock)
	}

	bad := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(bad, []byte("product\nTea\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res = client.Upload(ctx, api.PathUploadInventory, bad)
	if res.OK || res.Transport || res.Error != "missing column stock_left" {
		t.Fatalf("bad upload = %+v", res)
	}
}

func TestWrongMethodIsEnveloped(t *testing.T) {
	_, client := startServer(t)
	res := client.Request(context.Background(), api.PathStock, api.RequestOptions{Method: http.MethodDelete})
	if res.OK || res.Transport || res.Error != "method not allowed" {
		t.Fatalf("unexpected result %+v", res)
	}
}
