//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront/internal/domain/product"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "storefront",
				"POSTGRES_PASSWORD": "storefront",
				"POSTGRES_DB":       "storefront",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://storefront:storefront@%s:%s/storefront?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	require.NoError(t, RunMigrations(ctx, pool), "migrations must be idempotent")
	return pool
}

func TestProductRepository(t *testing.T) {
	pool := startPostgres(t)
	repo := NewProductRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.Ping(ctx))

	empty, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)

	catalog := []product.Product{
		{
			ID: "7", Title: "White Gold Plated Princess", Price: decimal.RequireFromString("9.99"),
			Category: "jewelery", Image: "https://example.com/7.jpg",
			Rating: &product.Rating{Rate: decimal.RequireFromString("3"), Count: 400},
		},
		{ID: "1", Title: "Fjallraven Backpack", Price: decimal.RequireFromString("109.95"), Category: "men's clothing"},
		{ID: "3", Title: "Mens Cotton Jacket", Price: decimal.RequireFromString("55.99"), Category: "jewelery"},
	}
	require.NoError(t, repo.ReplaceCatalog(ctx, catalog))

	t.Run("ListKeepsCatalogOrder", func(t *testing.T) {
		got, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "7", got[0].ID)
		assert.Equal(t, "1", got[1].ID)
		assert.Equal(t, "3", got[2].ID)
		assert.True(t, catalog[0].Price.Equal(got[0].Price))
		require.NotNil(t, got[0].Rating)
		assert.Equal(t, 400, got[0].Rating.Count)
		assert.Nil(t, got[1].Rating)
	})

	t.Run("GetByID", func(t *testing.T) {
		p, err := repo.GetByID(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "Fjallraven Backpack", p.Title)

		_, err = repo.GetByID(ctx, "missing")
		require.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("CategoriesFirstAppearance", func(t *testing.T) {
		got, err := repo.Categories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"jewelery", "men's clothing"}, got)
	})

	t.Run("ReplaceDropsOldRows", func(t *testing.T) {
		require.NoError(t, repo.ReplaceCatalog(ctx, catalog[1:2]))
		got, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "1", got[0].ID)
	})

	t.Run("ReplaceIsAtomic", func(t *testing.T) {
		dup := []product.Product{catalog[0], catalog[0]}
		require.Error(t, repo.ReplaceCatalog(ctx, dup))

		got, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1, "failed replace must leave the previous catalog")
	})
}
