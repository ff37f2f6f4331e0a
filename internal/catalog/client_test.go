package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodorder/internal/discovery"
	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

func newCatalogServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	resolver := discovery.NewStaticResolver(map[string]string{ServiceName: srv.URL})
	return NewClient(resolver, WithTimeout(200*time.Millisecond))
}

func TestClientDishFound(t *testing.T) {
	client := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/dish/7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.Dish{ID: 7, Category: "pizza", Name: "Margherita", UnitPrice: 650, Description: "classic"})
	})

	dish, err := client.Dish(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), dish.ID)
	require.Equal(t, "Margherita", dish.Name)
}

func TestClientDishNotFound(t *testing.T) {
	client := newCatalogServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Dish(context.Background(), 7)
	require.ErrorIs(t, err, domain.ErrDishNotFound)
	require.False(t, domain.IsTransient(err))
}

func TestClientTransientFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
		},
		{
			name: "null body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("null"))
			},
		},
		{
			name: "empty object",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("{}"))
			},
		},
		{
			name: "different dish",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(domain.Dish{ID: 8, Category: "pizza", Name: "Marinara", UnitPrice: 550})
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newCatalogServer(t, tt.handler)
			_, err := client.Dish(context.Background(), 7)
			require.Error(t, err)
			require.True(t, domain.IsTransient(err), "expected transient error, got %v", err)
			require.False(t, errors.Is(err, domain.ErrDishNotFound))
		})
	}
}

func TestClientUnresolvableService(t *testing.T) {
	client := NewClient(discovery.NewStaticResolver(nil))

	_, err := client.Dish(context.Background(), 7)
	require.True(t, domain.IsTransient(err))
	require.ErrorIs(t, err, discovery.ErrServiceNotFound)
}

func TestClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client := NewClient(discovery.NewStaticResolver(map[string]string{ServiceName: addr}))
	_, err := client.Dish(context.Background(), 7)
	require.True(t, domain.IsTransient(err))
}

func TestClientDishesByCategory(t *testing.T) {
	client := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dish/category/pizza":
			_ = json.NewEncoder(w).Encode([]domain.Dish{{ID: 7, Category: "pizza", Name: "Margherita", UnitPrice: 650, Description: "classic"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	dishes, err := client.DishesByCategory(context.Background(), "pizza")
	require.NoError(t, err)
	require.Len(t, dishes, 1)

	_, err = client.DishesByCategory(context.Background(), "dessert")
	require.ErrorIs(t, err, domain.ErrNoDishesInCategory)
}

func TestNormalizeBaseURL(t *testing.T) {
	require.Equal(t, "http://localhost:9091", normalizeBaseURL("localhost:9091"))
	require.Equal(t, "https://catalog", normalizeBaseURL("https://catalog"))
}

func TestClientDishesByCategoryMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "null body", body: "null"},
		{name: "dish without id", body: `[{"dishCategory":"pizza","dishName":"Ghost"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newCatalogServer(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.DishesByCategory(context.Background(), "pizza")
			require.True(t, domain.IsTransient(err), "expected transient error, got %v", err)
			require.False(t, errors.Is(err, domain.ErrNoDishesInCategory))
		})
	}

	empty := newCatalogServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})
	_, err := empty.DishesByCategory(context.Background(), "pizza")
	require.ErrorIs(t, err, domain.ErrNoDishesInCategory)
}
