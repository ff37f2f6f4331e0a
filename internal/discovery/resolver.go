// Package discovery отвечает за преобразование логического имени сервиса в адрес.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// ErrServiceNotFound возвращается, если ни один экземпляр сервиса не известен.
var ErrServiceNotFound = errors.New("service not found")

// StaticResolver: фиксированная таблица имя → адрес.
type StaticResolver struct {
	addrs map[string]string
}

// NewStaticResolver копирует таблицу адресов.
func NewStaticResolver(addrs map[string]string) *StaticResolver {
	copied := make(map[string]string, len(addrs))
	for name, addr := range addrs {
		copied[name] = strings.TrimSpace(addr)
	}
	return &StaticResolver{addrs: copied}
}

func (r *StaticResolver) Resolve(ctx context.Context, serviceName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	addr, ok := r.addrs[serviceName]
	if !ok || addr == "" {
		return "", fmt.Errorf("%w: %s", ErrServiceNotFound, serviceName)
	}
	return addr, nil
}

// Chain опрашивает резолверы по порядку и возвращает первый найденный адрес.
// ErrServiceNotFound от одного резолвера не прерывает перебор, прочие ошибки запоминаются.
type Chain []domain.Resolver

func (c Chain) Resolve(ctx context.Context, serviceName string) (string, error) {
	var errs []error
	for _, r := range c {
		if r == nil {
			continue
		}
		addr, err := r.Resolve(ctx, serviceName)
		if err == nil {
			return addr, nil
		}
		if !errors.Is(err, ErrServiceNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", fmt.Errorf("%w: %s", ErrServiceNotFound, serviceName)
}

var (
	_ domain.Resolver = (*StaticResolver)(nil)
	_ domain.Resolver = Chain(nil)
)
