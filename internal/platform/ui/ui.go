package ui

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
	LevelDebug
)

var (
	mu      sync.Mutex
	enabled = true
)

func StartUISystem(title string) {
	mu.Lock()
	defer mu.Unlock()
	pterm.DefaultHeader.WithFullWidth().Println(title)
}

func StopUISystem() {
	mu.Lock()
	defer mu.Unlock()
	enabled = false
}

// SetDebug toggles pterm debug output.
func SetDebug(on bool) {
	if on {
		pterm.EnableDebugMessages()
	} else {
		pterm.DisableDebugMessages()
	}
}

func UpdateStatus(label, status string, level Level) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}

	line := status
	if label != "" {
		line = fmt.Sprintf("[%s] %s", label, status)
	}

	switch level {
	case LevelSuccess:
		pterm.Success.Println(line)
	case LevelWarning:
		pterm.Warning.Println(line)
	case LevelError:
		pterm.Error.Println(line)
	case LevelDebug:
		pterm.Debug.Println(line)
	default:
		pterm.Info.Println(line)
	}
}

type ScheduleRow struct {
	Name    string
	NextRun time.Time
}

// PrintSchedule renders the registered timers ordered by next firing.
func PrintSchedule(rows []ScheduleRow, now time.Time) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled || len(rows) == 0 {
		return
	}

	sorted := append([]ScheduleRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NextRun.Before(sorted[j].NextRun) })

	data := pterm.TableData{{"Job", "Next run", "In"}}
	for _, row := range sorted {
		data = append(data, []string{
			row.Name,
			row.NextRun.Format("2006-01-02 15:04"),
			FormatDelay(row.NextRun.Sub(now)),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func FormatDelay(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d H %02d M %02d S", h, m, s)
}
