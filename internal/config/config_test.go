package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TAX_RATE", "")
	t.Setenv("DELIVERY_FEE", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("CLIENT_URL", "http://shop.test")
	t.Setenv("ADMIN_URL", "http://shop.test")
	t.Setenv("CORS_ORIGINS", "")

	cfg := Load()
	if cfg.TaxRate != 0.0825 {
		t.Fatalf("expected default tax rate 0.0825, got %v", cfg.TaxRate)
	}
	if cfg.DeliveryFee != 3.99 {
		t.Fatalf("expected default delivery fee 3.99, got %v", cfg.DeliveryFee)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Fatalf("expected 7 day token ttl, got %v", cfg.TokenTTL)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://shop.test" {
		t.Fatalf("expected deduplicated origins, got %v", cfg.CORSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TAX_RATE", "0.1")
	t.Setenv("DELIVERY_FEE", "5")
	t.Setenv("TOKEN_TTL", "2")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,,http://a.test")
	t.Setenv("PAYMENT_CURRENCY", "EUR")

	cfg := Load()
	if cfg.TaxRate != 0.1 || cfg.DeliveryFee != 5 {
		t.Fatalf("expected overrides, got tax=%v fee=%v", cfg.TaxRate, cfg.DeliveryFee)
	}
	if cfg.TokenTTL != 48*time.Hour {
		t.Fatalf("expected 2 day token ttl, got %v", cfg.TokenTTL)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSOrigins)
	}
	if cfg.PaymentCurrency != "eur" {
		t.Fatalf("expected lower-cased currency, got %q", cfg.PaymentCurrency)
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("TAX_RATE", "abc")
	t.Setenv("TOKEN_TTL", "-3")

	cfg := Load()
	if cfg.TaxRate != 0.0825 {
		t.Fatalf("expected fallback tax rate, got %v", cfg.TaxRate)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Fatalf("expected fallback ttl, got %v", cfg.TokenTTL)
	}
}
