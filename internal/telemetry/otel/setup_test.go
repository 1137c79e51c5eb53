package otel

import (
	"context"
	"testing"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	providers, err := NewProviders(context.Background(), "", "test-service", false)
	if err != nil {
		t.Fatalf("NewProviders empty endpoint: %v", err)
	}
	if providers == nil {
		t.Fatal("providers should not be nil")
	}
	if providers.TracerProvider == nil {
		t.Error("TracerProvider should not be nil")
	}
	if providers.MeterProvider == nil {
		t.Error("MeterProvider should not be nil")
	}
	if providers.Shutdown == nil {
		t.Error("Shutdown should not be nil")
	}
	if err := providers.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown of no-op providers: %v", err)
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	if _, err := NewProviders(context.Background(), "://bad", "test-service", false); err == nil {
		t.Error("malformed endpoint should be rejected")
	}
}
