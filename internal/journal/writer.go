package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	errWriterClosed = errors.New("journal writer is closed")
	errBufferFull   = errors.New("journal buffer full")
)

// Writer appends JSON lines asynchronously to <dir>/<date>/<session>.jsonl,
// starting a new file when the UTC date changes.
type Writer struct {
	dir         string
	session     string
	maxSizeMB   int
	writeCh     chan any
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
	mu          sync.Mutex
	currentDate string
	out         *lumberjack.Logger
	now         func() time.Time
}

// NewWriter starts a writer. An empty session names files by start time.
func NewWriter(dir string, bufferSize, maxSizeMB int, session string) *Writer {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if session == "" {
		session = fmt.Sprintf("%d", time.Now().Unix())
	}
	w := &Writer{
		dir:       dir,
		session:   session,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan any, bufferSize),
		done:      make(chan struct{}),
		now:       time.Now,
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Write queues a record without blocking. Records are dropped when the
// buffer is full.
func (w *Writer) Write(record any) error {
	select {
	case <-w.done:
		return errWriterClosed
	default:
	}
	select {
	case w.writeCh <- record:
		return nil
	default:
		slog.Warn("journal buffer full, dropping record", "session", w.session)
		return errBufferFull
	}
}

// Close stops the writer after flushing queued records.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	w.wg.Wait()

	deadline := time.After(5 * time.Second)
drain:
	for {
		select {
		case record := <-w.writeCh:
			w.writeRecord(record)
		case <-deadline:
			slog.Warn("journal close timeout, some records may be lost", "session", w.session)
			break drain
		default:
			break drain
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out != nil {
		return w.out.Close()
	}
	return nil
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case record := <-w.writeCh:
			w.writeRecord(record)
		case <-w.done:
			return
		}
	}
}

func (w *Writer) writeRecord(record any) {
	data, err := json.Marshal(record)
	if err != nil {
		slog.Error("journal marshal failed", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().UTC().Format("2006-01-02")
	if w.out == nil || date != w.currentDate {
		if err := w.openForDate(date); err != nil {
			slog.Error("journal open failed", "error", err)
			return
		}
	}
	if _, err := w.out.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "error", err)
	}
}

// Path is the file the writer is currently appending to.
func (w *Writer) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out == nil {
		return ""
	}
	return w.out.Filename
}

func (w *Writer) openForDate(date string) error {
	if w.out != nil {
		_ = w.out.Close()
		w.out = nil
	}
	dir := filepath.Join(w.dir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	w.out = &lumberjack.Logger{
		Filename:   filepath.Join(dir, w.session+".jsonl"),
		MaxSize:    w.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
	}
	w.currentDate = date
	slog.Info("journal file opened", "file", w.out.Filename)
	return nil
}
