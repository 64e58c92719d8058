package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"shoppersprint-alerts/internal/logger"
	"shoppersprint-alerts/internal/models"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

func TestGetProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/prod-1":
			json.NewEncoder(w).Encode(models.Product{
				ID:           "prod-1",
				Name:         "4K Monitor",
				CurrentPrice: 89900,
				Currency:     "USD",
			})
		case "/products/prod-broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-1")

	t.Run("found", func(t *testing.T) {
		product, err := client.GetProduct(context.Background(), "prod-1")
		if err != nil {
			t.Fatalf("GetProduct() error = %v", err)
		}
		if product.ID != "prod-1" || product.Name != "4K Monitor" || product.CurrentPrice != 89900 {
			t.Errorf("unexpected product: %+v", product)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := client.GetProduct(context.Background(), "prod-missing")
		if !errors.Is(err, ErrProductNotFound) {
			t.Errorf("GetProduct() error = %v, want ErrProductNotFound", err)
		}
	})

	t.Run("catalog failure", func(t *testing.T) {
		_, err := client.GetProduct(context.Background(), "prod-broken")
		if err == nil {
			t.Fatal("GetProduct() expected an error")
		}
		if errors.Is(err, ErrProductNotFound) {
			t.Error("a catalog failure must not look like a missing product")
		}
	})
}

func TestStaticSource(t *testing.T) {
	product, err := StaticSource{}.GetProduct(context.Background(), "prod-9")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if product.ID != "prod-9" || product.Name != "prod-9" {
		t.Errorf("unexpected product: %+v", product)
	}
}
