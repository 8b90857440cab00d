// Command corridor-report renders an offline HTML report from a corridor
// database: per-object speed percentiles and the alert mix, charted with
// go-echarts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/arctic-data/corridor/internal/db"
)

var (
	dbPath  = flag.String("db", "corridor.db", "Path to sqlite database file")
	outPath = flag.String("out", "corridor-report.html", "Output HTML file")
	days    = flag.Int("days", 7, "History window in days")
)

// objectSummary is one row of the speed table.
type objectSummary struct {
	ObjectID string
	Count    int
	Mean     float64
	P50      float64
	P85      float64
	Max      float64
}

func summarizeObject(ctx context.Context, database *db.DB, objectID string, days int) (*objectSummary, error) {
	speeds, err := database.SpeedSamples(ctx, objectID, days)
	if err != nil {
		return nil, err
	}
	s := &objectSummary{ObjectID: objectID, Count: len(speeds)}
	if len(speeds) == 0 {
		return s, nil
	}
	sort.Float64s(speeds)
	s.Mean = stat.Mean(speeds, nil)
	s.P50 = stat.Quantile(0.50, stat.Empirical, speeds, nil)
	s.P85 = stat.Quantile(0.85, stat.Empirical, speeds, nil)
	s.Max = speeds[len(speeds)-1]
	return s, nil
}

func speedChart(summaries []*objectSummary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Speed by object (m/s)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "m/s"}),
	)

	var names []string
	var p50, p85, max []opts.BarData
	for _, s := range summaries {
		names = append(names, s.ObjectID)
		p50 = append(p50, opts.BarData{Value: s.P50})
		p85 = append(p85, opts.BarData{Value: s.P85})
		max = append(max, opts.BarData{Value: s.Max})
	}
	bar.SetXAxis(names).
		AddSeries("p50", p50).
		AddSeries("p85", p85).
		AddSeries("max", max)
	return bar
}

func alertChart(counts map[db.AlertKind]int) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Alerts by kind"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	kinds := []db.AlertKind{db.AlertEnter, db.AlertExit, db.AlertLowConfidence, db.AlertStale}
	var names []string
	var data []opts.BarData
	for _, k := range kinds {
		names = append(names, string(k))
		data = append(data, opts.BarData{Value: counts[k]})
	}
	bar.SetXAxis(names).AddSeries("alerts", data)
	return bar
}

func main() {
	flag.Parse()
	ctx := context.Background()

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	objects, err := database.ListTrackedObjects(ctx)
	if err != nil {
		log.Fatalf("Failed to list objects: %v", err)
	}
	if len(objects) == 0 {
		log.Fatal("No tracked objects in database, nothing to report")
	}

	var summaries []*objectSummary
	for _, obj := range objects {
		s, err := summarizeObject(ctx, database, obj.ObjectID, *days)
		if err != nil {
			log.Fatalf("Failed to summarize %s: %v", obj.ObjectID, err)
		}
		summaries = append(summaries, s)
	}

	// The paging walk stops once a short page comes back.
	counts := make(map[db.AlertKind]int)
	const pageSize = 1000
	for offset := 0; ; offset += pageSize {
		alerts, err := database.ListAlerts(ctx, pageSize, offset)
		if err != nil {
			log.Fatalf("Failed to list alerts: %v", err)
		}
		for _, a := range alerts {
			counts[a.Kind]++
		}
		if len(alerts) < pageSize {
			break
		}
	}

	page := components.NewPage()
	page.PageTitle = "Corridor Report"
	page.AddCharts(speedChart(summaries), alertChart(counts))

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}

	fmt.Printf("Report written to %s (%d objects, %d alerts)\n",
		*outPath, len(summaries), counts[db.AlertEnter]+counts[db.AlertExit]+counts[db.AlertLowConfidence]+counts[db.AlertStale])
}
