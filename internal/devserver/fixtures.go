package devserver

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/smartstock/internal/api"
)

// DateLayout is the calendar date format used in fixtures, CSV files and
// forecast points.
const DateLayout = "2006-01-02"

//go:embed default_fixtures.yaml
var defaultFixturesYAML []byte

// User is a login the development backend accepts. PINHash is a bcrypt
// hash; generate one with HashPIN or `smartstock-devserver -hash-pin`.
type User struct {
	UserID  string `yaml:"user_id"`
	PINHash string `yaml:"pin_hash"`
}

// HashPIN returns the bcrypt hash stored in a fixture's pin_hash field.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("devserver: hash pin: %w", err)
	}
	return string(hash), nil
}

// Sale is one line of sales history.
type Sale struct {
	Date    string  `yaml:"date"`
	Product string  `yaml:"product"`
	Units   float64 `yaml:"units"`
}

// Fixtures seeds the development backend.
type Fixtures struct {
	// Today pins the reference date for alerts, forecasts and insights.
	// Empty means the server clock.
	Today             string                `yaml:"today"`
	LowStockThreshold float64               `yaml:"low_stock_threshold"`
	ExpiryWarningDays int                   `yaml:"expiry_warning_days"`
	Users             []User                `yaml:"users"`
	Stock             []api.InventoryRecord `yaml:"stock"`
	Sales             []Sale                `yaml:"sales"`
}

// DefaultFixtures returns the built-in sample shop.
func DefaultFixtures() (Fixtures, error) {
	return parseFixtures(defaultFixturesYAML, "default fixtures")
}

// LoadFixtures reads fixtures from path, or the built-in set when path is empty.
func LoadFixtures(path string) (Fixtures, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultFixtures()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("devserver: read fixtures: %w", err)
	}
	return parseFixtures(data, path)
}

func parseFixtures(data []byte, source string) (Fixtures, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return Fixtures{}, fmt.Errorf("devserver: parse %s: %w", source, err)
	}
	fx.applyDefaults()
	if err := fx.validate(); err != nil {
		return Fixtures{}, fmt.Errorf("devserver: %s: %w", source, err)
	}
	return fx, nil
}

func (fx *Fixtures) applyDefaults() {
	if fx.LowStockThreshold <= 0 {
		fx.LowStockThreshold = 5
	}
	if fx.ExpiryWarningDays <= 0 {
		fx.ExpiryWarningDays = 7
	}
}

func (fx Fixtures) validate() error {
	if fx.Today != "" {
		if _, err := time.Parse(DateLayout, fx.Today); err != nil {
			return fmt.Errorf("today: %w", err)
		}
	}
	for i, u := range fx.Users {
		if strings.TrimSpace(u.UserID) == "" || u.PINHash == "" {
			return fmt.Errorf("users[%d]: user_id and pin_hash are required", i)
		}
		if _, err := bcrypt.Cost([]byte(u.PINHash)); err != nil {
			return fmt.Errorf("users[%d]: pin_hash: %w", i, err)
		}
	}
	for i, rec := range fx.Stock {
		if strings.TrimSpace(rec.Product) == "" {
			return fmt.Errorf("stock[%d]: product is required", i)
		}
		if rec.ExpiryDate != nil {
			if _, err := time.Parse(DateLayout, *rec.ExpiryDate); err != nil {
				return fmt.Errorf("stock[%d]: expiry_date: %w", i, err)
			}
		}
	}
	for i, s := range fx.Sales {
		if _, err := time.Parse(DateLayout, s.Date); err != nil {
			return fmt.Errorf("sales[%d]: date: %w", i, err)
		}
		if strings.TrimSpace(s.Product) == "" {
			return fmt.Errorf("sales[%d]: product is required", i)
		}
	}
	return nil
}
