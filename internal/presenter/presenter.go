package presenter

import (
	"recommendation-dashboard/internal/analysis"
	"recommendation-dashboard/internal/models"
)

const (
	PageTitle         = "Eficiência da Recomendação"
	EmptyStateMessage = "Faça upload do arquivo CSV para começar."
)

// KPI is one metric tile
type KPI struct {
	Key   string
	Label string
	Value int
}

// KPIs returns the five headline tiles in display order
func KPIs(s *models.Summary) []KPI {
	return []KPI{
		{Key: "total", Label: "Recomendações Aceitas", Value: s.TotalRecords},
		{Key: "new", Label: "Novos Produtos", Value: s.NewProducts},
		{Key: "stale", Label: "Compras Antigas", Value: s.StaleRepurchases},
		{Key: "recurring", Label: "Recorrentes", Value: s.Recurring},
		{Key: "orders", Label: "Total Pedidos", Value: s.DistinctOrders},
	}
}

// Dashboard is the view model of the dashboard page
type Dashboard struct {
	Title         string
	SourceName    string
	ThresholdDays int
	MinThreshold  int
	MaxThreshold  int
	KPIs          []KPI
	SkippedRows   int
	Empty         bool
	ChartsURL     string
}

// NewDashboard builds the page model for an analyzed dataset
func NewDashboard(sourceName string, s *models.Summary, chartsURL string) Dashboard {
	return Dashboard{
		Title:         PageTitle,
		SourceName:    sourceName,
		ThresholdDays: s.ThresholdDays,
		MinThreshold:  analysis.MinThresholdDays,
		MaxThreshold:  analysis.MaxThresholdDays,
		KPIs:          KPIs(s),
		SkippedRows:   s.SkippedRows,
		Empty:         s.TotalRecords == 0,
		ChartsURL:     chartsURL,
	}
}

// Upload is the view model of the upload page
type Upload struct {
	Title            string
	Message          string
	Error            string
	DefaultThreshold int
	MinThreshold     int
	MaxThreshold     int
}

// NewUpload builds the upload page model; errMsg may be empty
func NewUpload(defaultThreshold int, errMsg string) Upload {
	return Upload{
		Title:            PageTitle,
		Message:          EmptyStateMessage,
		Error:            errMsg,
		DefaultThreshold: defaultThreshold,
		MinThreshold:     analysis.MinThresholdDays,
		MaxThreshold:     analysis.MaxThresholdDays,
	}
}
