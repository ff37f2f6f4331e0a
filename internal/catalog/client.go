package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

const (
	// ServiceName: логическое имя каталога в discovery.
	ServiceName = "food-service"

	defaultClientTimeout = 2 * time.Second
	maxResponseBytes     = 1 << 20
)

// Client ходит в catalog-service по HTTP. Адрес определяется на каждый вызов через Resolver.
type Client struct {
	resolver    domain.Resolver
	serviceName string
	http        *http.Client
	logger      *log.Entry
	retry       RetryPolicy
}

// ClientOption настраивает Client.
type ClientOption func(*Client)

// WithTimeout задаёт таймаут одного запроса.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithHTTPClient подменяет http.Client (таймаут берётся из него).
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithServiceName меняет логическое имя сервиса.
func WithServiceName(name string) ClientOption {
	return func(c *Client) {
		if name != "" {
			c.serviceName = name
		}
	}
}

// WithLogger задаёт логгер клиента.
func WithLogger(logger *log.Entry) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient создаёт HTTP-клиент каталога.
func NewClient(resolver domain.Resolver, opts ...ClientOption) *Client {
	c := &Client{
		resolver:    resolver,
		serviceName: ServiceName,
		http:        &http.Client{Timeout: defaultClientTimeout},
		logger:      log.New().WithField("component", "catalog-client"),
		retry:       RetryPolicy{MaxAttempts: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dish запрашивает GET /dish/{id}. Ответ 200 с чужим или пустым блюдом
// считается битым ответом и даёт ErrRemoteUnavailable.
func (c *Client) Dish(ctx context.Context, id int64) (domain.Dish, error) {
	var dish domain.Dish
	err := c.withRetry(ctx, "dish", func() error {
		dish = domain.Dish{}
		if err := c.get(ctx, "/dish/"+strconv.FormatInt(id, 10), &dish); err != nil {
			return err
		}
		if dish.ID != id {
			return domain.RemoteUnavailable(c.serviceName, fmt.Errorf("response carries dish %d, requested %d", dish.ID, id))
		}
		return nil
	})
	if err != nil {
		return domain.Dish{}, err
	}
	return dish, nil
}

// DishesByCategory запрашивает GET /dish/category/{category}.
// 404 каталога и пустой массив означают пустую категорию, null или блюдо без id считаются битым ответом.
func (c *Client) DishesByCategory(ctx context.Context, category string) ([]domain.Dish, error) {
	var dishes []domain.Dish
	err := c.withRetry(ctx, "dishes_by_category", func() error {
		dishes = nil
		if err := c.get(ctx, "/dish/category/"+url.PathEscape(category), &dishes); err != nil {
			return err
		}
		if dishes == nil {
			return domain.RemoteUnavailable(c.serviceName, errors.New("category response is null"))
		}
		for _, d := range dishes {
			if d.ID <= 0 {
				return domain.RemoteUnavailable(c.serviceName, errors.New("category response contains a dish without id"))
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrDishNotFound) {
		return nil, domain.ErrNoDishesInCategory
	}
	if err != nil {
		return nil, err
	}
	if len(dishes) == 0 {
		return nil, domain.ErrNoDishesInCategory
	}
	return dishes, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	base, err := c.resolver.Resolve(ctx, c.serviceName)
	if err != nil {
		return domain.RemoteUnavailable(c.serviceName, fmt.Errorf("resolve: %w", err))
	}

	endpoint := strings.TrimRight(normalizeBaseURL(base), "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.RemoteUnavailable(c.serviceName, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("endpoint", endpoint).Warn("catalog request failed")
		return domain.RemoteUnavailable(c.serviceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.RemoteUnavailable(c.serviceName, fmt.Errorf("read body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrDishNotFound
	case resp.StatusCode != http.StatusOK:
		c.logger.WithFields(log.Fields{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Warn("unexpected catalog status")
		return domain.RemoteUnavailable(c.serviceName, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return domain.RemoteUnavailable(c.serviceName, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// normalizeBaseURL допускает адреса в discovery без схемы ("host:port").
func normalizeBaseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}

var _ domain.DishCatalog = (*Client)(nil)
