package csvbackend

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/qparser/internal/session"
	"github.com/FranksOps/qparser/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order; one row per result.
var headers = []string{
	"session_id",
	"query",
	"created_at",
	"position",
	"uri",
	"title",
	"domain",
	"snippet",
}

// New creates a CSV export at filePath, writing the header row to new files.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csv: stat: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv: header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv: header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, s *session.Session) error {
	created := s.CreatedAt.Format(time.RFC3339)

	b.mu.Lock()
	defer b.mu.Unlock()

	w := csv.NewWriter(b.file)
	for i, r := range s.Results {
		record := []string{s.ID, s.Query, created, strconv.Itoa(i + 1), r.URI, r.Title, r.Domain, r.Snippet}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("csv: write: %w", err)
		}
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
