//go:build !integration

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/model"
)

func TestSessionRepo_VersionedSave(t *testing.T) {
	ctx := context.Background()
	r := NewSessionRepo()
	s := model.NewCareerSession("s1", "sys")

	if err := r.Save(ctx, s); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if s.Version != 1 {
		t.Fatalf("expected version 1, got %d", s.Version)
	}

	a, _ := r.FindByID(ctx, "s1")
	b, _ := r.FindByID(ctx, "s1")
	a.AddMessage(model.RoleUser, "from a", 0)
	b.AddMessage(model.RoleUser, "from b", 0)

	if err := r.Save(ctx, a); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := r.Save(ctx, b); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for stale write, got %v", err)
	}

	got, _ := r.FindByID(ctx, "s1")
	if len(got.Messages) != 2 || got.Messages[1].Content != "from a" {
		t.Fatalf("unexpected stored messages %+v", got.Messages)
	}
}

func TestSessionRepo_IsolatesCallers(t *testing.T) {
	ctx := context.Background()
	r := NewSessionRepo()
	s := model.NewCareerSession("s1", "sys")
	_ = r.Save(ctx, s)

	s.AddMessage(model.RoleUser, "not saved", 0)
	got, _ := r.FindByID(ctx, "s1")
	if len(got.Messages) != 1 {
		t.Fatal("store shares memory with caller")
	}
}

func TestSessionRepo_Delete(t *testing.T) {
	ctx := context.Background()
	r := NewSessionRepo()
	_ = r.Save(ctx, model.NewCareerSession("s1", "sys"))

	if err := r.Delete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.FindByID(ctx, "s1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.Delete(ctx, "s1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSessionRepo_DeleteIdle(t *testing.T) {
	ctx := context.Background()
	r := NewSessionRepo()
	old := model.NewCareerSession("old", "sys")
	old.LastActive = time.Now().Add(-time.Hour)
	_ = r.Save(ctx, old)
	_ = r.Save(ctx, model.NewCareerSession("fresh", "sys"))

	ids, _ := r.DeleteIdle(ctx, time.Now().Add(-time.Minute))
	if len(ids) != 1 || ids[0] != "old" || r.Len() != 1 {
		t.Fatalf("expected one purge, got %v (left %d)", ids, r.Len())
	}
}
