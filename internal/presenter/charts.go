package presenter

import (
	"io"

	"recommendation-dashboard/internal/models"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	TitleSellers      = "Top Vendedores"
	TitleDistribution = "Distribuição das Recomendações"
	TitleProducts     = "Top Produtos Recomendados"
	TitleCustomers    = "Top Clientes que Mais Aderiram"

	chartWidth  = "1100px"
	chartHeight = "420px"
	stackName   = "status"
)

// sellerPalette colours sellers in table order, wrapping when exhausted
var sellerPalette = []string{
	"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
	"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
}

var statusColors = map[models.Status]string{
	models.StatusNewProduct:      "#4C78A8",
	models.StatusStaleRepurchase: "#F58518",
	models.StatusRecurring:       "#54A24B",
}

func newBar(title string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: PageTitle,
			Width:     chartWidth,
			Height:    chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true}),
	)
	return bar
}

// SellerChart plots row counts per seller in table order, one colour per seller
func SellerChart(s *models.Summary) *charts.Bar {
	bar := newBar(TitleSellers)

	sellers := make([]string, 0, len(s.SellerCounts))
	data := make([]opts.BarData, 0, len(s.SellerCounts))
	for i, g := range s.SellerCounts {
		sellers = append(sellers, g.Key)
		data = append(data, opts.BarData{
			Name:      g.Key,
			Value:     g.Count,
			ItemStyle: &opts.ItemStyle{Color: sellerColor(i)},
		})
	}

	bar.SetXAxis(sellers).AddSeries("count", data)
	return bar
}

// StatusChart plots the status distribution, one colored bar per status
func StatusChart(s *models.Summary) *charts.Bar {
	bar := newBar(TitleDistribution)
	bar.SetGlobalOptions(charts.WithLegendOpts(opts.Legend{Show: true, Right: "0"}))

	labels := make([]string, 0, len(s.StatusDistribution))
	for _, sc := range s.StatusDistribution {
		labels = append(labels, sc.Label)
	}
	bar.SetXAxis(labels)

	for i, sc := range s.StatusDistribution {
		data := make([]opts.BarData, len(s.StatusDistribution))
		for j := range data {
			data[j] = opts.BarData{Value: 0}
		}
		data[i] = opts.BarData{Name: sc.Label, Value: sc.Count}

		bar.AddSeries(sc.Label, data,
			charts.WithBarChartOpts(opts.BarChart{Stack: stackName}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: statusColors[sc.Status]}),
		)
	}
	return bar
}

// ProductChart stacks product counts by status
func ProductChart(s *models.Summary) *charts.Bar {
	bar := stackedChart(TitleProducts, s.ProductStatusCounts)
	bar.SetGlobalOptions(charts.WithXAxisOpts(opts.XAxis{
		AxisLabel: &opts.AxisLabel{Show: true, Rotate: 45, Interval: "0"},
	}))
	return bar
}

// CustomerChart stacks customer counts by status
func CustomerChart(s *models.Summary) *charts.Bar {
	return stackedChart(TitleCustomers, s.CustomerStatusCounts)
}

func stackedChart(title string, groups []models.StatusGroupCount) *charts.Bar {
	bar := newBar(title)
	bar.SetGlobalOptions(charts.WithLegendOpts(opts.Legend{Show: true, Right: "0"}))

	keys, series := stackSeries(groups)
	bar.SetXAxis(keys)

	for _, status := range models.Statuses {
		values, ok := series[status]
		if !ok {
			continue
		}
		data := make([]opts.BarData, len(values))
		for i, v := range values {
			data[i] = opts.BarData{Value: v}
		}
		bar.AddSeries(status.Label(), data,
			charts.WithBarChartOpts(opts.BarChart{Stack: stackName}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: statusColors[status]}),
		)
	}
	return bar
}

func sellerColor(i int) string {
	return sellerPalette[i%len(sellerPalette)]
}

// stackSeries lays out a (key, status) table as x-axis keys in order of first
// appearance and one aligned value slice per status present in the table.
func stackSeries(groups []models.StatusGroupCount) ([]string, map[models.Status][]int) {
	index := make(map[string]int)
	keys := make([]string, 0)
	for _, g := range groups {
		if _, ok := index[g.Key]; !ok {
			index[g.Key] = len(keys)
			keys = append(keys, g.Key)
		}
	}

	series := make(map[models.Status][]int)
	for _, g := range groups {
		values, ok := series[g.Status]
		if !ok {
			values = make([]int, len(keys))
			series[g.Status] = values
		}
		values[index[g.Key]] += g.Count
	}
	return keys, series
}

// ChartsPage assembles the four dashboard charts into one page
func ChartsPage(s *models.Summary) *components.Page {
	page := components.NewPage()
	page.PageTitle = PageTitle
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(
		SellerChart(s),
		StatusChart(s),
		ProductChart(s),
		CustomerChart(s),
	)
	return page
}

// RenderCharts writes the charts page as standalone HTML
func RenderCharts(w io.Writer, s *models.Summary) error {
	return ChartsPage(s).Render(w)
}
