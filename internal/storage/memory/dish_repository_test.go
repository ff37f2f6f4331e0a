package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/storage/memory"
)

func TestDishRepository_CreateGetList(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewDishRepository()

	soup, err := repo.Create(ctx, domain.Dish{Category: "Starter", Name: "Tomato soup", UnitPrice: 450, Description: "Roasted tomatoes"})
	require.NoError(t, err)
	require.Equal(t, int64(1), soup.ID)

	steak, err := repo.Create(ctx, domain.Dish{ID: 7, Category: "Main", Name: "Steak", UnitPrice: 2400, Description: "Ribeye"})
	require.NoError(t, err)
	require.Equal(t, int64(7), steak.ID)

	next, err := repo.Create(ctx, domain.Dish{Category: "starter", Name: "Bruschetta", UnitPrice: 380, Description: "Garlic bread"})
	require.NoError(t, err)
	require.Equal(t, int64(8), next.ID)

	_, err = repo.Create(ctx, domain.Dish{ID: 7, Category: "Main", Name: "Dup", UnitPrice: 1, Description: "dup"})
	require.ErrorIs(t, err, domain.ErrDishAlreadyExists)

	got, err := repo.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "Steak", got.Name)

	_, err = repo.Get(ctx, 99)
	require.ErrorIs(t, err, domain.ErrDishNotFound)

	starters, err := repo.ListByCategory(ctx, " STARTER ")
	require.NoError(t, err)
	require.Len(t, starters, 2)
	require.Equal(t, soup.ID, starters[0].ID)
	require.Equal(t, next.ID, starters[1].ID)

	none, err := repo.ListByCategory(ctx, "Dessert")
	require.NoError(t, err)
	require.Empty(t, none)
}
