// Package report summarizes a station's recorded events into percentile
// statistics and a human-facing HTML chart, as a supplemental operator
// view over the append-only event log.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/rebar-platform/edgevision/internal/vision/event"
)

// Summary aggregates one station's event history: throughput and
// confidence percentiles, bucketed hourly counts.
type Summary struct {
	StationID     string
	TotalEvents   int
	P50Confidence float64
	P85Confidence float64
	P98Confidence float64
	HourlyCounts  map[string]int
}

// Summarize computes a Summary over events, which must all share one
// station ID; a mismatched station ID is an error.
func Summarize(stationID string, events []event.Event) (Summary, error) {
	summary := Summary{StationID: stationID, HourlyCounts: make(map[string]int)}
	if len(events) == 0 {
		return summary, nil
	}

	confidences := make([]float64, 0, len(events))
	for _, e := range events {
		if e.StationID() != stationID {
			return Summary{}, fmt.Errorf("report: event for station %q does not match requested station %q", e.StationID(), stationID)
		}
		confidences = append(confidences, e.Confidence())
		bucket := e.Timestamp().UTC().Format("2006-01-02T15:00")
		summary.HourlyCounts[bucket]++
	}

	sort.Float64s(confidences)
	summary.TotalEvents = len(confidences)
	summary.P50Confidence = stat.Quantile(0.5, stat.Empirical, confidences, nil)
	summary.P85Confidence = stat.Quantile(0.85, stat.Empirical, confidences, nil)
	summary.P98Confidence = stat.Quantile(0.98, stat.Empirical, confidences, nil)
	return summary, nil
}

// RenderHourlyChart renders summary's hourly event counts as an HTML bar
// chart, sorted chronologically by bucket.
func RenderHourlyChart(summary Summary) (string, error) {
	buckets := make([]string, 0, len(summary.HourlyCounts))
	for b := range summary.HourlyCounts {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)

	counts := make([]opts.BarData, 0, len(buckets))
	for _, b := range buckets {
		counts = append(counts, opts.BarData{Value: summary.HourlyCounts[b]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "960px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Cut events — %s", summary.StationID),
			Subtitle: fmt.Sprintf("generated %s, %d events total", time.Now().UTC().Format(time.RFC3339), summary.TotalEvents),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(buckets).
		AddSeries("events/hour", counts, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return "", fmt.Errorf("report: rendering chart: %w", err)
	}
	return buf.String(), nil
}
