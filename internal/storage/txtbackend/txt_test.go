package txtbackend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/FranksOps/qparser/internal/session"
)

func TestTXTBackend(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "urls.txt")
	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create TXT backend: %v", err)
	}

	ctx := context.Background()
	_ = b.Save(ctx, &session.Session{Results: []session.Result{{URI: "https://a.example/1"}, {URI: "https://b.example/2"}}})
	_ = b.Save(ctx, &session.Session{Results: []session.Result{{URI: "https://c.example/3"}}})
	if err := b.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	want := "https://a.example/1\nhttps://b.example/2\nhttps://c.example/3\n"
	if string(data) != want {
		t.Errorf("unexpected export:\n%s", data)
	}
}
