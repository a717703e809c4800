package chart

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Document is the Chart.js configuration rendered by the chart service.
type Document struct {
	Type    string  `json:"type"`
	Data    Data    `json:"data"`
	Options Options `json:"options"`
}

// Data holds the x-axis labels and the plotted series.
type Data struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one series bound to a y axis.
type Dataset struct {
	Type            string    `json:"type"`
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BorderColor     string    `json:"borderColor,omitempty"`
	BorderWidth     int       `json:"borderWidth,omitempty"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	Fill            *bool     `json:"fill,omitempty"`
	YAxisID         string    `json:"yAxisID"`
}

// Options carries the chart title and its axes.
type Options struct {
	Title  Title           `json:"title"`
	Scales map[string]Axis `json:"scales"`
}

// Title is a chart or axis caption.
type Title struct {
	Display bool   `json:"display"`
	Text    string `json:"text"`
}

// Axis is a linear y axis keyed by its id in Options.
type Axis struct {
	Type     string `json:"type"`
	Display  bool   `json:"display"`
	Position string `json:"position"`
	Title    Title  `json:"title"`
	Grid     *Grid  `json:"grid,omitempty"`
}

// Grid toggles grid lines for an axis.
type Grid struct {
	DrawOnChartArea bool `json:"drawOnChartArea"`
}

// BuildDocument renders a dual-axis chart: average heart rate as a line on the right axis over
// distance bars on the left axis.
func BuildDocument(labels []string, distances, heartRates []float64) Document {
	noFill := false
	return Document{
		Type: "bar",
		Data: Data{
			Labels: labels,
			Datasets: []Dataset{
				{
					Type:        "line",
					Label:       "Avg HR (bpm)",
					Data:        heartRates,
					BorderColor: "#ff6384",
					BorderWidth: 2,
					Fill:        &noFill,
					YAxisID:     "y1",
				},
				{
					Type:            "bar",
					Label:           "Distance (km)",
					Data:            distances,
					BackgroundColor: "rgba(54, 162, 235, 0.5)",
					YAxisID:         "y",
				},
			},
		},
		Options: Options{
			Title: Title{Display: true, Text: "Training Load: Volume vs Intensity (Last 30 Days)"},
			Scales: map[string]Axis{
				"y": {
					Type: "linear", Display: true, Position: "left",
					Title: Title{Display: true, Text: "Distance (km)"},
				},
				"y1": {
					Type: "linear", Display: true, Position: "right",
					Grid:  &Grid{DrawOnChartArea: false},
					Title: Title{Display: true, Text: "Heart Rate (bpm)"},
				},
			},
		},
	}
}

// URL encodes doc into an image URL on the chart service at base.
func URL(base string, doc Document, width, height int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse chart base url: %w", err)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode chart config: %w", err)
	}
	q := u.Query()
	q.Set("c", string(body))
	q.Set("w", strconv.Itoa(width))
	q.Set("h", strconv.Itoa(height))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
