package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Bar draws a single-line progress bar for a tree hash.
// A nil *Bar is valid and draws nothing.
type Bar struct {
	total      int64
	current    int64
	skipped    int64
	width      int
	writer     io.Writer
	mu         sync.Mutex
	currentDir string
	lastUpdate time.Time
	interval   time.Duration
}

func New(total int64, w io.Writer) *Bar {
	return &Bar{
		total:    total,
		width:    40,
		writer:   w,
		interval: 100 * time.Millisecond,
	}
}

// IsTerminal reports whether f is a character device.
func IsTerminal(f *os.File) bool {
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// SetTotal changes the expected number of files.
func (b *Bar) SetTotal(total int64) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.total = total
	b.mu.Unlock()
}

// Step records one processed file. skipped marks files that were not hashed.
func (b *Bar) Step(path string, skipped bool) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.current++
	if skipped {
		b.skipped++
	}
	b.currentDir = filepath.Base(filepath.Dir(path))

	// Update at most every interval to reduce flickering
	now := time.Now()
	if now.Sub(b.lastUpdate) > b.interval || b.current == b.total {
		b.lastUpdate = now
		b.render()
	}
}

// render must be called with mu already locked
func (b *Bar) render() {
	if b.total == 0 {
		return
	}

	current := b.current
	if current > b.total {
		current = b.total
	}
	percent := float64(current) / float64(b.total) * 100
	filledWidth := int(float64(b.width) * float64(current) / float64(b.total))

	bar := strings.Repeat("█", filledWidth) + strings.Repeat("░", b.width-filledWidth)

	var dirDisplay string
	if b.currentDir != "" {
		dirDisplay = " | " + b.currentDir
	}

	// Clear the line and write progress
	fmt.Fprintf(b.writer, "\r\033[K[%s] %3d%% (%d/%d) skipped %d%s",
		bar, int(percent), current, b.total, b.skipped, dirDisplay)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = b.total
	b.render()
	fmt.Fprintf(b.writer, "\n")
}
