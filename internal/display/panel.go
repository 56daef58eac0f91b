// Package display turns device snapshots into the text shown on the panel.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"cheesecave/internal/logger"
	"cheesecave/internal/models"
)

// Panel is the content of one screen: a header, four data lines and the
// labels of the two buttons beside them.
type Panel struct {
	Header          string `json:"header"`
	Water           string `json:"water"`
	Humidity        string `json:"humidity"`
	DesiredHumidity string `json:"desired_humidity"`
	Temperature     string `json:"temperature"`
	Primary         string `json:"primary"`
	Secondary       string `json:"secondary"`
}

var buttonLabels = map[models.Mode][2]string{
	models.ModeGeneralInfo: {"fan", "settings"},
	models.ModeHumiditySet: {"up", "down"},
	models.ModeSettings:    {"shutdown", "water"},
	models.ModeWaterSet:    {"empty", "refill"},
}

// Compose lays out snap.
func Compose(snap models.Snapshot) Panel {
	p := Panel{
		Header:          "Updated at " + snap.TakenAt.Local().Format("15:04"),
		Humidity:        fmt.Sprintf("%.1f%% RH", snap.Humidity),
		DesiredHumidity: fmt.Sprintf("Desired %.1f%% RH", snap.DesiredHumidity),
		Temperature:     fmt.Sprintf("%.1f °C %.1f °F", snap.Temperature, snap.Temperature*9/5+32),
		Water:           "No water",
	}
	if snap.HasWater {
		p.Water = fmt.Sprintf("Water %.0f%%", snap.WaterLevel*100)
	}
	labels := buttonLabels[snap.Mode]
	p.Primary, p.Secondary = labels[0], labels[1]
	return p
}

// Lines returns the panel top to bottom, each data line prefixed by the
// button label level with it.
func (p Panel) Lines() []string {
	return []string{
		fmt.Sprintf("[%-8s] %s", p.Primary, p.Header),
		fmt.Sprintf("%10s %s", "", p.Water),
		fmt.Sprintf("%10s %s", "", p.Humidity),
		fmt.Sprintf("%10s %s", "", p.DesiredHumidity),
		fmt.Sprintf("[%-8s] %s", p.Secondary, p.Temperature),
	}
}

func (p Panel) String() string {
	return strings.Join(p.Lines(), "\n")
}

// LogRenderer writes each panel to the log.
type LogRenderer struct {
	log *logger.Logger
}

func NewLogRenderer(log *logger.Logger) *LogRenderer {
	return &LogRenderer{log: log.Named("display")}
}

func (r *LogRenderer) Render(snap models.Snapshot) error {
	p := Compose(snap)
	r.log.Infow("panel",
		"mode", snap.Mode.String(),
		"water", p.Water,
		"humidity", p.Humidity,
		"desired", p.DesiredHumidity,
		"temperature", p.Temperature,
	)
	return nil
}

// TextRenderer draws the panel as a framed text box, standing in for the
// e-paper screen when emulating.
type TextRenderer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (r *TextRenderer) Render(snap models.Snapshot) error {
	lines := Compose(snap).Lines()
	width := 0
	for _, l := range lines {
		if n := len([]rune(l)); n > width {
			width = n
		}
	}
	border := "+" + strings.Repeat("-", width+2) + "+"

	var b strings.Builder
	b.WriteString(border + "\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "| %s%s |\n", l, strings.Repeat(" ", width-len([]rune(l))))
	}
	b.WriteString(border + "\n")

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := io.WriteString(r.w, b.String())
	return err
}
