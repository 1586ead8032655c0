package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tracecap/tracecap"
)

// FileDispatcher appends serialized events to a JSONL file, one record per
// line. Useful for offline inspection or piping captures into other tools
// without a running collector.
type FileDispatcher struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewFileDispatcher opens (or creates) the JSONL file for appending.
func NewFileDispatcher(path string) (*FileDispatcher, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("transport: create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("transport: open %q: %w", path, err)
	}
	return &FileDispatcher{path: path, file: file}, nil
}

// SendTransactions implements tracecap.Dispatcher.
func (d *FileDispatcher) SendTransactions(_ context.Context, store *tracecap.TransactionStore) error {
	for _, t := range store.All() {
		if err := d.writeLine(t.Payload()); err != nil {
			return err
		}
	}
	return nil
}

// SendErrors implements tracecap.Dispatcher.
func (d *FileDispatcher) SendErrors(_ context.Context, store *tracecap.ErrorStore) error {
	for _, e := range store.All() {
		if err := d.writeLine(e.Payload()); err != nil {
			return err
		}
	}
	return nil
}

func (d *FileDispatcher) writeLine(record any) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("transport: marshal record: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("transport: write record: %w", err)
	}
	return d.file.Sync()
}

// Close flushes and closes the underlying file.
func (d *FileDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}
