package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiBinStock/internal/config"
	"github.com/nemonet1337/zaiBinStock/pkg/inventory"
	"github.com/nemonet1337/zaiBinStock/pkg/inventory/exchange"
)

// app is the state shared by every subcommand once the catalog is loaded
type app struct {
	v       *viper.Viper
	logger  *zap.Logger
	catalog *inventory.Catalog
	ops     *inventory.Operations
}

// newRootCmd builds the stockctl command tree.
// Settings come from flags, ZAISTOCK_* environment variables or --config.
// stockctlのコマンドツリーを構築
func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "stockctl",
		Short:         "Bin-level inventory reports from a CSV file",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("file", "", "CSV file to load")
	flags.Bool("seed", false, "load the demo products")
	flags.Int("error-limit", exchange.DefaultErrorLimit, "row errors kept in an import report")
	flags.String("config", "", "config file")
	flags.String("log-level", "warn", "log level")
	flags.String("output", "table", "output format: table|json")

	for _, name := range []string{"file", "seed", "error-limit", "config", "log-level", "output"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}
	a.v.SetEnvPrefix("ZAISTOCK")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.statsCmd(),
		a.reportCmd(),
		a.alertsCmd(),
		a.categoriesCmd(),
		a.groupsCmd(),
		a.abcCmd(),
		a.movementCmd(inventory.MovementTypeEntry),
		a.movementCmd(inventory.MovementTypeExit),
		a.exportCmd(),
	)
	return root
}

// load reads the configuration and fills the catalog
// 設定を読み込みカタログを構築
func (a *app) load() error {
	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
	}

	logger, err := config.NewLogger(config.LoggingConfig{
		Level:  a.v.GetString("log-level"),
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return err
	}
	a.logger = logger
	a.catalog = inventory.NewCatalog(logger)
	a.ops = inventory.NewOperations(a.catalog, nil, logger)

	if a.v.GetBool("seed") {
		inventory.SeedDemo(a.catalog)
	}

	path := a.v.GetString("file")
	if path == "" {
		if a.catalog.Len() == 0 {
			return errors.New("--file または --seed を指定してください")
		}
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("CSVファイルを開けません: %w", err)
	}
	defer f.Close()

	rows, err := exchange.ReadCSV(f)
	if err != nil {
		return err
	}

	importer := exchange.NewImporter(a.catalog, logger)
	importer.ErrorLimit = a.v.GetInt("error-limit")
	report := importer.Import(rows, exchange.DefaultMapping())
	for _, e := range report.Errors {
		logger.Warn("行を取り込めませんでした", zap.Int("row", e.Row), zap.String("message", e.Message))
	}
	return nil
}

// render writes v as JSON when --output=json, otherwise calls table
func (a *app) render(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	if a.v.GetString("output") == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.ops.Statistics()
			return a.render(cmd.OutOrStdout(), s, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "products\t%d\n", s.TotalProducts)
				fmt.Fprintf(tw, "units\t%d\n", s.TotalUnits)
				fmt.Fprintf(tw, "value\t%.2f\n", s.TotalValue)
				fmt.Fprintf(tw, "alerts\t%d (%.2f%%)\n", s.AlertCount, s.AlertPercent)
				fmt.Fprintf(tw, "mean stock\t%.2f\n", s.MeanStock)
				fmt.Fprintf(tw, "mean price\t%.2f\n", s.MeanPrice)
				fmt.Fprintf(tw, "mean value\t%.2f\n", s.MeanValue)
			})
		},
	}
}

func (a *app) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show the stock report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := a.ops.ReportTable()
			return a.render(cmd.OutOrStdout(), rows, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tITEM\tBIN\tNAME\tSTOCK\tMIN\tMAX\tVALUE\tOCCUPANCY\tREORDER\tALERT")
				for _, r := range rows {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%.2f\t%.2f%%\t%d\t%t\n",
						r.ID, r.ItemNumber, r.BinLocation, r.Name, r.CurrentStock,
						r.MinStock, r.MaxStock, r.InventoryValue, r.OccupancyPercent,
						r.ReorderQuantity, r.Alert)
				}
			})
		},
	}
}

func (a *app) alertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "List products below their minimum stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			alerts := a.ops.Alerts()
			if alerts == nil {
				alerts = []inventory.StockAlert{}
			}
			return a.render(cmd.OutOrStdout(), alerts, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tNAME\tBIN\tSTOCK\tMIN\tREORDER")
				for _, al := range alerts {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\n",
						al.ProductID, al.Name, al.BinLocation, al.CurrentQty, al.Threshold, al.ReorderQuantity)
				}
			})
		},
	}
}

func (a *app) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Show totals per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats := a.ops.CategoryBreakdown()
			return a.render(cmd.OutOrStdout(), cats, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "CATEGORY\tPRODUCTS\tUNITS\tVALUE\tMEAN PRICE")
				for _, c := range cats {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.2f\n",
						c.Category, c.ProductCount, c.TotalUnits, c.TotalValue, c.MeanPrice)
				}
			})
		},
	}
}

func (a *app) groupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "Show stock per logical item across bins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			groups := a.catalog.GroupedByItem()
			return a.render(cmd.OutOrStdout(), groups, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ITEM\tBINS\tTOTAL")
				for _, g := range groups {
					fmt.Fprintf(tw, "%s\t%d\t%d\n", g.Key, len(g.Products), g.TotalStock())
				}
			})
		},
	}
}

func (a *app) abcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abc",
		Short: "Classify products by inventory value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			classes := a.ops.ABCClassification()
			ids := make([]int64, 0, len(classes))
			for id := range classes {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

			return a.render(cmd.OutOrStdout(), classes, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tCLASS")
				for _, id := range ids {
					fmt.Fprintf(tw, "%d\t%s\n", id, classes[id])
				}
			})
		},
	}
}

// movementCmd records an entry or exit and, with --write, saves the
// catalog back to --file
func (a *app) movementCmd(kind inventory.MovementType) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   string(kind) + " <id> <quantity>",
		Short: "Record a stock " + string(kind),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("無効な商品IDです: %s", args[0])
			}
			qty, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("無効な数量です: %s", args[1])
			}

			var msg string
			if kind == inventory.MovementTypeEntry {
				msg, err = a.ops.RecordEntry(context.Background(), id, qty)
			} else {
				msg, err = a.ops.RecordExit(context.Background(), id, qty)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)

			if !write {
				return nil
			}
			path := a.v.GetString("file")
			if path == "" {
				return errors.New("--write には --file が必要です")
			}
			return writeCSVFile(path, a.catalog)
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "save the catalog back to --file")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return exchange.WriteCSV(cmd.OutOrStdout(), exchange.Export(a.catalog), exchange.DefaultColumns())
			}
			return writeCSVFile(out, a.catalog)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (stdout when empty)")
	return cmd
}

func writeCSVFile(path string, catalog exchange.ProductReader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("CSVファイルを作成できません: %w", err)
	}
	if err := exchange.WriteCSV(f, exchange.Export(catalog), exchange.DefaultColumns()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
