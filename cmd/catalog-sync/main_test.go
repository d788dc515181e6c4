package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/fakestore"
)

func TestValidate(t *testing.T) {
	ok := product.Product{ID: "1", Price: decimal.NewFromInt(1)}
	require.NoError(t, validate([]product.Product{ok}))
	require.NoError(t, validate(nil))

	require.ErrorContains(t, validate([]product.Product{{Price: decimal.NewFromInt(1)}}), "has no id")
	require.ErrorContains(t, validate([]product.Product{ok, ok}), "duplicate product id")
	require.ErrorContains(t, validate([]product.Product{{ID: "2", Price: decimal.NewFromInt(-1)}}), "negative price")
}

func TestRun_DryRunWithSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		wantGzip bool
	}{
		{name: "gzip", file: "catalog.json.gz", wantGzip: true},
		{name: "plain", file: "catalog.json", wantGzip: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := filepath.Join(t.TempDir(), tt.file)

			err := run(context.Background(), zap.NewNop(), options{
				fromFile: filepath.Join("..", "..", "internal", "fakestore", "testdata", "products.json"),
				snapshot: snapshot,
				dryRun:   true,
			})
			require.NoError(t, err)

			data, err := os.ReadFile(snapshot)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(data), 2)
			assert.Equal(t, tt.wantGzip, data[0] == 0x1f && data[1] == 0x8b)
			if !tt.wantGzip {
				assert.Equal(t, byte('['), data[0])
			}

			products, err := fakestore.ReadCatalog(bytes.NewReader(data))
			require.NoError(t, err)
			assert.NotEmpty(t, products)

			_, err = os.Stat(snapshot + ".tmp")
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestRun_MissingDump(t *testing.T) {
	err := run(context.Background(), zap.NewNop(), options{fromFile: "does-not-exist.json", dryRun: true})
	require.ErrorContains(t, err, "open dump")
}
