package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const datePattern = "2006-01-02"

// dailyFile is a zapcore.WriteSyncer that writes to <dir>/<name>-<date>.log.
// A new file is opened when the date changes; within a day lumberjack rotates
// by size. Dated files older than maxAge days are removed on each rollover.
type dailyFile struct {
	mu      sync.Mutex
	dir     string
	name    string
	maxSize int
	maxAge  int
	now     func() time.Time

	day string
	out *lumberjack.Logger
}

func newDailyFile(dir, name string, maxSizeMB, maxAgeDays int) *dailyFile {
	return &dailyFile{
		dir:     dir,
		name:    name,
		maxSize: maxSizeMB,
		maxAge:  maxAgeDays,
		now:     time.Now,
	}
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	day := d.now().Format(datePattern)
	if d.out == nil || day != d.day {
		if d.out != nil {
			_ = d.out.Close()
		}
		d.day = day
		d.out = &lumberjack.Logger{
			Filename: d.filename(day),
			MaxSize:  d.maxSize,
			MaxAge:   d.maxAge,
		}
		d.prune()
	}
	return d.out.Write(p)
}

func (d *dailyFile) Sync() error {
	return nil
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.out == nil {
		return nil
	}
	err := d.out.Close()
	d.out = nil
	return err
}

func (d *dailyFile) filename(day string) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s-%s.log", d.name, day))
}

// prune drops dated files (and their lumberjack backups) past retention.
func (d *dailyFile) prune() {
	if d.maxAge <= 0 {
		return
	}
	matches, err := filepath.Glob(filepath.Join(d.dir, d.name+"-*.log"))
	if err != nil {
		return
	}
	cutoff := d.now().AddDate(0, 0, -d.maxAge)
	prefix := d.name + "-"
	for _, path := range matches {
		base := strings.TrimPrefix(filepath.Base(path), prefix)
		if len(base) < len(datePattern) {
			continue
		}
		day, err := time.ParseInLocation(datePattern, base[:len(datePattern)], d.now().Location())
		if err != nil {
			continue
		}
		if day.AddDate(0, 0, 1).Before(cutoff) {
			_ = os.Remove(path)
		}
	}
}
