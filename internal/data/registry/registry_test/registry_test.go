package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/docupipe/docupipe/internal/data/registry"
	"github.com/docupipe/docupipe/internal/domain/document"
	"github.com/docupipe/docupipe/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

func TestMain(m *testing.M) {
	logger_i.Init()
	m.Run()
}

func TestRedisRegistry_Lifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	reg := registry.NewTestRegistry(client)

	ctx := context.Background()
	doc := document.Document{
		Filename:    "report.pdf",
		Stage:       document.StageParsed,
		ParsedPath:  "parsed_files/report.md",
		CreatedTime: time.Now(),
	}

	t.Run("Save and Get Roundtrip", func(t *testing.T) {
		if err := reg.Save(ctx, doc); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, found := reg.Get(ctx, "report.pdf")
		if !found {
			t.Fatal("Document was saved but not found")
		}
		if got.Stage != document.StageParsed || got.ParsedPath != doc.ParsedPath {
			t.Errorf("Data mismatch! Got %+v, want %+v", got, doc)
		}
	})

	t.Run("Get Non-Existent Document", func(t *testing.T) {
		_, found := reg.Get(ctx, "ghost.pdf")
		if found {
			t.Error("Expected found=false for non-existent key")
		}
	})

	t.Run("List", func(t *testing.T) {
		other := doc
		other.Filename = "second.pdf"
		if err := reg.Save(ctx, other); err != nil {
			t.Fatal(err)
		}
		docs, err := reg.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(docs) != 2 {
			t.Errorf("Expected 2 documents, got %d", len(docs))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		reg.Delete(ctx, "report.pdf")
		if _, found := reg.Get(ctx, "report.pdf"); found {
			t.Error("Document still exists after Delete")
		}
	})
}

func TestInMemoryRegistry_Lifecycle(t *testing.T) {
	reg := registry.InitInMemoryRegistry()
	ctx := context.Background()

	doc := document.Document{Filename: "a.pdf", Stage: document.StageUploaded}
	if err := reg.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, found := reg.Get(ctx, "a.pdf")
	if !found || got.Stage != document.StageUploaded {
		t.Errorf("Get returned %+v found=%v", got, found)
	}

	reg.Delete(ctx, "a.pdf")
	if _, found := reg.Get(ctx, "a.pdf"); found {
		t.Error("Document still present after Delete")
	}
}

func TestInMemoryRegistry_Race(t *testing.T) {
	reg := registry.InitInMemoryRegistry()
	ctx := context.Background()

	const workers = 50
	for i := 0; i < workers; i++ {
		go func() {
			_ = reg.Save(ctx, document.Document{Filename: "race.pdf"})
			_, _ = reg.Get(ctx, "race.pdf")
		}()
	}
}
