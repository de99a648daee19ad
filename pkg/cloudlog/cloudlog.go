// Package cloudlog appends one structured row per processed task to a
// pipe-delimited CSV object, and reads it back for task listing.
package cloudlog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/pacific-earth/fcover/pkg/store"
)

const Header = "time|index|status|paths|comment"

// Status values written by the pipeline.
const (
	StatusComplete        = "complete"
	StatusError           = "error"
	StatusEmptyCollection = "empty collection error"
)

// Row is one log line. Paths holds comma-joined output keys.
type Row struct {
	Time    string `csv:"time"`
	Index   string `csv:"index"`
	Status  string `csv:"status"`
	Paths   string `csv:"paths"`
	Comment string `csv:"comment"`
}

// Logger appends rows by read-modify-write of a single log object. Two
// processes appending at once can lose a row; the pipeline accepts this the
// same way it accepts the scene-level exists race.
type Logger struct {
	Store store.Store
	Key   string

	now func() time.Time
}

func New(st store.Store, key string) *Logger {
	return &Logger{Store: st, Key: key, now: time.Now}
}

// Info records a completed task with its output paths.
func (l *Logger) Info(ctx context.Context, index, status string, paths []string) error {
	return l.append(ctx, index, status, strings.Join(paths, ","), "")
}

// Error records a failed task.
func (l *Logger) Error(ctx context.Context, index, status string, cause error) error {
	comment := ""
	if cause != nil {
		comment = cause.Error()
	}

	return l.append(ctx, index, status, "", comment)
}

func (l *Logger) append(ctx context.Context, index, status, paths, comment string) error {
	body, err := l.Store.Get(ctx, l.Key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("read log %s: %w", l.Key, err)
		}

		body = []byte(Header + "\n")
	}

	now := time.Now
	if l.now != nil {
		now = l.now
	}

	line := strings.Join([]string{
		now().UTC().Format(time.RFC3339),
		sanitize(index),
		sanitize(status),
		sanitize(paths),
		sanitize(comment),
	}, "|")

	body = append(body, []byte(line+"\n")...)

	if err := l.Store.Put(ctx, l.Key, body, "text/csv"); err != nil {
		return fmt.Errorf("write log %s: %w", l.Key, err)
	}

	return nil
}

// the field separator must never appear inside a field
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "|", "/")
	s = strings.ReplaceAll(s, "\n", " ")

	return s
}

// Rows reads the whole log. A missing log object is an empty log.
func (l *Logger) Rows(ctx context.Context) ([]Row, error) {
	body, err := l.Store.Get(ctx, l.Key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("read log %s: %w", l.Key, err)
	}

	return Parse(body)
}

// Parse decodes pipe-delimited log rows.
func Parse(body []byte) ([]Row, error) {
	var rows []Row

	err := gocsv.UnmarshalBytesToCallback(body, func(r Row) {
		rows = append(rows, r)
	})
	if err != nil {
		return nil, fmt.Errorf("parse log: %w", err)
	}

	return rows, nil
}

func init() {
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = '|'
		r.LazyQuotes = true

		return r
	})
}
