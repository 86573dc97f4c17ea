package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"recommendation-dashboard/internal/analysis"
	"recommendation-dashboard/internal/loader"
	"recommendation-dashboard/internal/models"
	"recommendation-dashboard/internal/util"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "", "CSV or XLSX file with ID_PEDIDO, DATA_LOG, ULTIMA_COMPRA, VENDEDOR, PRODUTO, CLIENTE")
	threshold := flag.Int("threshold", analysis.DefaultThresholdDays, "days after which a repurchase counts as stale (30..720)")
	skipInvalid := flag.Bool("skip-invalid", false, "drop rows with an unparseable DATA_LOG instead of failing")
	top := flag.Int("top", 10, "rows to print per grouped table (0 prints all)")
	quiet := flag.Bool("q", false, "hide the progress bar")
	flag.Parse()

	if *file == "" {
		log.Fatalf("Usage: analyze -file orders.csv [-threshold 60] [-skip-invalid] [-top 10]")
	}

	if err := util.InitLogger("development"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	if err := analysis.ValidateThreshold(*threshold); err != nil {
		logger.Fatal("Invalid threshold", zap.Int("threshold", *threshold), zap.Error(err))
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Fatal("Failed to open file", zap.String("file", *file), zap.Error(err))
	}
	defer f.Close()

	ds, err := loader.Load(*file, f, loader.Options{SkipInvalidRows: *skipInvalid})
	if err != nil {
		logger.Fatal("Failed to load file", zap.String("file", *file), zap.Error(err))
	}
	logger.Info("File loaded",
		zap.String("file", ds.SourceName),
		zap.Int("rows", len(ds.Rows)),
		zap.Int("skipped_rows", ds.SkippedRows))

	summary, err := run(ds, *threshold, !*quiet)
	if err != nil {
		logger.Fatal("Failed to analyze file", zap.String("file", ds.SourceName), zap.Error(err))
	}
	printSummary(os.Stdout, ds.SourceName, summary, *top)
}

// run analyzes the dataset, ticking the progress bar as rows are classified
func run(ds *models.Dataset, thresholdDays int, showProgress bool) (*models.Summary, error) {
	if !showProgress {
		return analysis.Run(ds, thresholdDays)
	}

	bar := progressbar.Default(int64(len(ds.Rows)), "classificando")
	summary, err := analysis.RunWithProgress(ds, thresholdDays, func(rows int) {
		_ = bar.Add(rows)
	})
	_ = bar.Finish()
	return summary, err
}

func printSummary(out io.Writer, source string, s *models.Summary, top int) {
	fmt.Fprintf(out, "\nArquivo: %s (limite %d dias)\n\n", source, s.ThresholdDays)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Recomendações Aceitas\t%d\n", s.TotalRecords)
	fmt.Fprintf(w, "Novos Produtos\t%d\n", s.NewProducts)
	fmt.Fprintf(w, "Compras Antigas\t%d\n", s.StaleRepurchases)
	fmt.Fprintf(w, "Recorrentes\t%d\n", s.Recurring)
	fmt.Fprintf(w, "Total Pedidos\t%d\n", s.DistinctOrders)
	if s.SkippedRows > 0 {
		fmt.Fprintf(w, "Linhas ignoradas\t%d\n", s.SkippedRows)
	}
	w.Flush()

	fmt.Fprintln(out, "\nTop Vendedores")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, g := range s.SellerCounts {
		if top > 0 && i >= top {
			break
		}
		fmt.Fprintf(w, "  %s\t%d\n", g.Key, g.Count)
	}
	w.Flush()

	printStatusTable(out, "Top Produtos Recomendados", s.ProductStatusCounts, top)
	printStatusTable(out, "Top Clientes que Mais Aderiram", s.CustomerStatusCounts, top)
}

func printStatusTable(out io.Writer, title string, rows []models.StatusGroupCount, top int) {
	fmt.Fprintf(out, "\n%s\n", title)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, g := range rows {
		if top > 0 && i >= top {
			break
		}
		fmt.Fprintf(w, "  %s\t%s\t%d\n", g.Key, g.Status.Label(), g.Count)
	}
	w.Flush()
}
