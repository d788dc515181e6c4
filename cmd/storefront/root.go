package main

import (
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/storefront/internal/domain/view"
	"github.com/xenking/storefront/internal/fakestore"
)

// cli holds the persistent flags and the state built from them.
type cli struct {
	out     io.Writer
	errOut  io.Writer
	baseURL string
	timeout time.Duration
	output  string
	verbose bool

	lg *zap.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "storefront",
		Short: "Browse the storefront product catalog",
		Long: `storefront reads products from a Fake Store compatible API and prints
the filtered, price sorted view of the catalog.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := parseFormat(c.output); err != nil {
				return err
			}
			return c.initLogger()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.lg != nil {
				_ = c.lg.Sync()
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&c.baseURL, "base-url", fakestore.DefaultBaseURL, "product API base URL")
	flags.DurationVar(&c.timeout, "timeout", 15*time.Second, "request timeout")
	flags.StringVarP(&c.output, "output", "o", string(formatTable), "output format: table, json or yaml")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		c.newListCmd(),
		c.newGetCmd(),
		c.newCategoriesCmd(),
	)
	return root
}

func (c *cli) initLogger() error {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if c.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	lg, err := cfg.Build()
	if err != nil {
		return errors.Wrap(err, "init logger")
	}
	c.lg = lg
	return nil
}

// engine returns a view engine over the configured remote source.
func (c *cli) engine() (*view.Engine, error) {
	client, err := fakestore.New(fakestore.Config{
		BaseURL:   c.baseURL,
		Timeout:   c.timeout,
		UserAgent: "storefront-cli",
	}, nil, nil)
	if err != nil {
		return nil, err
	}
	e := view.New(client, view.Config{FetchTimeout: c.timeout}, c.lg.Named("view"))
	c.watch(e)
	return e, nil
}

// watch logs every view change at debug level.
func (c *cli) watch(e *view.Engine) (cancel func()) {
	lg := c.lg.Named("view")
	return e.Subscribe(func(s view.Snapshot) {
		lg.Debug("View updated",
			zap.Uint64("version", s.Version),
			zap.Int("products", len(s.View)),
			zap.Int("catalog_size", s.CatalogSize),
			zap.Bool("loading", s.Loading),
			zap.String("error", s.Error),
		)
	})
}

func (c *cli) newListCmd() *cobra.Command {
	var (
		params view.Params
		sort   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products matching the search and category, sorted by price",
		Example: `  storefront list --search shirt --sort desc
  storefront list --category jewelery -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			order, err := view.ParseSortOrder(sort)
			if err != nil {
				return err
			}
			params.Sort = order

			e, err := c.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.SetParams(params); err != nil {
				return err
			}
			if err := e.Refresh(cmd.Context()); err != nil {
				return errors.Wrap(err, "load catalog")
			}
			return c.render(productsResult(e.View()))
		},
	}
	cmd.Flags().StringVarP(&params.SearchTerm, "search", "s", "", "case-insensitive title substring")
	cmd.Flags().StringVarP(&params.Category, "category", "c", "", "exact category")
	cmd.Flags().StringVar(&sort, "sort", string(view.SortAscending), "price order: asc or desc")
	return cmd
}

func (c *cli) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.BeginDetailFetch(cmd.Context(), args[0]).Wait(cmd.Context())
			if err != nil {
				return err
			}
			return c.render(productResult(*p))
		},
	}
}

func (c *cli) newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List product categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := c.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.Refresh(cmd.Context()); err != nil {
				return errors.Wrap(err, "load catalog")
			}
			return c.render(categoriesResult(e.Categories()))
		},
	}
}

func (c *cli) render(r result) error {
	f, err := parseFormat(c.output)
	if err != nil {
		return err
	}
	return r.write(c.out, f)
}
