package geo

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FileSource reads a fixed position from a file, for screens that never move.
// The first non-comment line of the form "lat,lon" is used.
type FileSource struct {
	path   string
	period time.Duration
}

func NewFileSource(path string, period time.Duration) *FileSource {
	if period <= 0 {
		period = 2 * time.Minute
	}
	return &FileSource{path: path, period: period}
}

func (f *FileSource) Supported() bool                        { return true }
func (f *FileSource) SecureContext() bool                    { return true }
func (f *FileSource) Permission(context.Context) Permission { return PermissionGranted }

func (f *FileSource) CurrentPosition(ctx context.Context, _ Options) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, &PositionError{Code: CodeTimeout, Message: err.Error()}
	}
	lat, lon, err := f.read()
	if err != nil {
		return Position{}, &PositionError{Code: CodePositionUnavailable, Message: err.Error()}
	}
	return Position{Latitude: lat, Longitude: lon, At: time.Now()}, nil
}

// WatchPosition re-reads the file every period and emits when the
// coordinates change; read errors are skipped.
func (f *FileSource) WatchPosition(ctx context.Context, _ Options) <-chan Fix {
	out := make(chan Fix)
	go func() {
		defer close(out)
		var last *Position
		firstRun := true

		for {
			if !firstRun {
				select {
				case <-ctx.Done():
					return
				case <-time.After(f.period):
				}
			}
			firstRun = false

			lat, lon, err := f.read()
			if err != nil {
				continue
			}
			if last != nil && last.Latitude == lat && last.Longitude == lon {
				continue
			}
			pos := Position{Latitude: lat, Longitude: lon, At: time.Now()}
			last = &pos

			select {
			case <-ctx.Done():
				return
			case out <- Fix{Position: pos}:
			}
		}
	}()
	return out
}

func (f *FileSource) read() (lat, lon float64, err error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, 0, fmt.Errorf("read position file %q: %w", f.path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			continue
		}
		lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			continue
		}
		lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			continue
		}
		return lat, lon, nil
	}
	return 0, 0, fmt.Errorf("no coordinates in %q", f.path)
}
