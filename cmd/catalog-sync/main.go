// Command catalog-sync copies the product catalog into the Postgres mirror.
//
// The catalog is read from the remote API or from a JSON dump (optionally
// gzip compressed). It can also be written to a snapshot file on the way,
// gzip compressed when the file name ends in .gz.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/fakestore"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type options struct {
	databaseURL string
	baseURL     string
	fromFile    string
	snapshot    string
	timeout     time.Duration
	dryRun      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.baseURL, "base-url", fakestore.DefaultBaseURL, "remote product API base URL")
	flag.StringVar(&opts.fromFile, "from-file", "", "read the catalog from a .json or .json.gz dump instead of the API")
	flag.StringVar(&opts.snapshot, "snapshot", "", "also write the catalog to this snapshot file (gzip when it ends in .gz)")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "remote API request timeout")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "fetch and validate without touching the database")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" && !opts.dryRun {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Catalog sync failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	products, err := load(ctx, lg, opts)
	if err != nil {
		return err
	}
	if err := validate(products); err != nil {
		return errors.Wrap(err, "validate catalog")
	}
	lg.Info("Catalog loaded",
		zap.Int("products", len(products)),
		zap.Int("categories", len(product.Categories(products))),
	)

	g, gctx := errgroup.WithContext(ctx)
	if opts.snapshot != "" {
		g.Go(func() error {
			return writeSnapshot(opts.snapshot, products)
		})
	}
	if !opts.dryRun {
		g.Go(func() error {
			return replaceMirror(gctx, lg, opts.databaseURL, products)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	lg.Info("Catalog sync completed", zap.Bool("dry_run", opts.dryRun), zap.String("snapshot", opts.snapshot))
	return nil
}

func load(ctx context.Context, lg *zap.Logger, opts options) ([]product.Product, error) {
	if opts.fromFile != "" {
		lg.Info("Reading catalog dump", zap.String("path", opts.fromFile))
		f, err := os.Open(opts.fromFile)
		if err != nil {
			return nil, errors.Wrap(err, "open dump")
		}
		defer func() { _ = f.Close() }()
		return fakestore.ReadCatalog(f)
	}

	lg.Info("Fetching catalog", zap.String("base_url", opts.baseURL))
	client, err := fakestore.New(fakestore.Config{
		BaseURL:   opts.baseURL,
		Timeout:   opts.timeout,
		UserAgent: "storefront-catalog-sync",
	}, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create client")
	}
	products, err := client.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch catalog")
	}
	return products, nil
}

// validate rejects catalogs the mirror cannot hold.
func validate(products []product.Product) error {
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		if p.ID == "" {
			return errors.Errorf("product #%d has no id", i)
		}
		if _, dup := seen[p.ID]; dup {
			return errors.Errorf("duplicate product id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.Price.IsNegative() {
			return errors.Errorf("product %q has negative price %s", p.ID, p.Price)
		}
	}
	return nil
}

func writeSnapshot(path string, products []product.Product) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create snapshot")
	}
	if err := fakestore.WriteCatalog(f, products, strings.HasSuffix(path, ".gz")); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.Wrap(err, "write snapshot")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "close snapshot")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "rename snapshot")
	}
	return nil
}

func replaceMirror(ctx context.Context, lg *zap.Logger, databaseURL string, products []product.Product) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return err
	}
	if err := postgres.NewProductRepository(pool).ReplaceCatalog(ctx, products); err != nil {
		return errors.Wrap(err, "replace catalog")
	}
	lg.Info("Mirror replaced", zap.Int("products", len(products)))
	return nil
}
