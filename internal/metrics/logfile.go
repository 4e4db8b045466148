package metrics

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// tailCounter counts matching lines appended to a file since the
// previous read. The offset starts at the current end of file so history
// predating the agent never triggers an alert, and resets when the file
// shrinks (rotation). A tailCounter is owned by a single check goroutine.
type tailCounter struct {
	path   string
	match  func(line string) bool
	offset int64
	primed bool
}

func newTailCounter(path string, match func(string) bool) *tailCounter {
	return &tailCounter{path: path, match: match}
}

// Read implements Source: the value is the number of new matching lines.
func (t *tailCounter) Read(ctx context.Context) (float64, error) {
	info, err := os.Stat(t.path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", t.path, err)
	}
	size := info.Size()

	if !t.primed {
		t.offset = size
		t.primed = true
		return 0, nil
	}
	if size < t.offset {
		// Rotated or truncated: start over from the beginning.
		t.offset = 0
	}
	if size == t.offset {
		return 0, nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek %s: %w", t.path, err)
	}

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if t.match(scanner.Text()) {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan %s: %w", t.path, err)
	}

	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("tell %s: %w", t.path, err)
	}
	t.offset = pos
	return float64(count), nil
}

// FailedLogins returns a source counting new failed SSH password
// attempts appended to the auth log since the previous read.
func FailedLogins(authLog string) Source {
	return newTailCounter(authLog, func(line string) bool {
		return strings.Contains(line, "Failed password")
	})
}

// LogErrors returns a source counting new error, critical, or failed
// lines appended to the given log file since the previous read.
func LogErrors(path string) Source {
	return newTailCounter(path, func(line string) bool {
		low := strings.ToLower(line)
		return strings.Contains(low, "error") ||
			strings.Contains(low, "critical") ||
			strings.Contains(low, "failed")
	})
}
