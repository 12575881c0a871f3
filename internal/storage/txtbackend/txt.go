package txtbackend

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/FranksOps/qparser/internal/session"
	"github.com/FranksOps/qparser/internal/storage"
)

var _ storage.Backend = (*txtBackend)(nil)

type txtBackend struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a plain-text export listing one result URI per line.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("txt: open: %w", err)
	}
	return &txtBackend{file: f}, nil
}

func (b *txtBackend) Save(ctx context.Context, s *session.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	w := bufio.NewWriter(b.file)
	for _, r := range s.Results {
		if _, err := w.WriteString(r.URI + "\n"); err != nil {
			return fmt.Errorf("txt: write: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("txt: flush: %w", err)
	}
	return nil
}

func (b *txtBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
