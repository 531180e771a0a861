package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorBold     = "\033[1m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

// termMu synchronizes ALL terminal output so that the status line can
// never be interrupted mid-write by a log line.
var termMu sync.Mutex

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// ------------------------------------------------------------
// TermWriter – a mutex-guarded io.Writer for log output.
// Every log.Println call will go through this writer.
// ------------------------------------------------------------

type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput().
// It serialises writes with PrintLiveStatus via termMu.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

// ------------------------------------------------------------
// Banner
// ------------------------------------------------------------

func PrintBanner() {
	banner := `
   ____  __  _____________/ /_____/ /
  / __ `+"`"+`/ / / / _ \/ ___/ __/ __  /
 / /_/ / /_/ /  __(__  ) /_/ /_/ /
 \__, /\__,_/\___/____/\__/\__,_/
   /_/
        >> AUTONOMOUS GOAL ENGINE <<
`

	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

// PrintLiveStatus renders one status line: phase, active goal, step
// progress and uptime.
func PrintLiveStatus(status *Status) {
	phase, goal, step, total, beat := status.Snapshot()

	uptime := time.Since(startTime).Round(time.Second)
	line := fmt.Sprintf("%s[%s]%s up %s | beat %s ago",
		colorBold+colorNeonMag, phase, colorReset,
		uptime, time.Since(beat).Round(time.Second))
	if goal != "" {
		if total > 0 {
			line += fmt.Sprintf(" | step %d/%d", step, total)
		}
		if len(goal) > 48 {
			goal = goal[:45] + "..."
		}
		line += " | " + goal
	}

	width := termWidth()
	if len(line) > width {
		line = line[:width]
	}

	termMu.Lock()
	defer termMu.Unlock()
	fmt.Printf("\r\033[K%s", line)
}
