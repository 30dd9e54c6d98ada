//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/model"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/security"
)

func TestCareerSessionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	encSvc, err := security.NewEncryptionService("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("failed to create encryption service: %v", err)
	}
	repo := NewCareerSessionRepo(testPool, NewTxManager(testPool), encSvc)

	t.Run("should save, append and decrypt messages in order", func(t *testing.T) {
		cleanup(t)
		s := model.NewCareerSession(uuid.NewString(), "system prompt")
		s.AddMessage(model.RoleAssistant, "welcome", 0)
		if err := repo.Save(ctx, s); err != nil {
			t.Fatalf("first save failed: %v", err)
		}

		s.AddMessage(model.RoleUser, "Alex", 1)
		s.Profile.Name = "Alex"
		s.State = model.StateAskStream
		if err := repo.Save(ctx, s); err != nil {
			t.Fatalf("second save failed: %v", err)
		}
		if s.Version != 2 {
			t.Fatalf("expected version 2, got %d", s.Version)
		}

		got, err := repo.FindByID(ctx, s.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if len(got.Messages) != 3 || got.Messages[2].Content != "Alex" || got.Messages[0].Role != model.RoleSystem {
			t.Fatalf("unexpected messages %+v", got.Messages)
		}
		if got.Profile.Name != "Alex" || got.State != model.StateAskStream || got.Version != 2 {
			t.Fatalf("unexpected session %+v", got)
		}

		var raw string
		if err := testPool.QueryRow(ctx, `SELECT content FROM career_messages WHERE session_id=$1 AND seq=2`, s.ID).Scan(&raw); err != nil {
			t.Fatal(err)
		}
		if raw == "Alex" {
			t.Fatal("message content stored in plaintext")
		}
	})

	t.Run("should reject a stale write", func(t *testing.T) {
		cleanup(t)
		s := model.NewCareerSession(uuid.NewString(), "sys")
		if err := repo.Save(ctx, s); err != nil {
			t.Fatal(err)
		}
		a, _ := repo.FindByID(ctx, s.ID)
		b, _ := repo.FindByID(ctx, s.ID)
		a.AddMessage(model.RoleUser, "a", 0)
		b.AddMessage(model.RoleUser, "b", 0)
		if err := repo.Save(ctx, a); err != nil {
			t.Fatal(err)
		}
		if err := repo.Save(ctx, b); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("should delete and report not found", func(t *testing.T) {
		cleanup(t)
		s := model.NewCareerSession(uuid.NewString(), "sys")
		_ = repo.Save(ctx, s)
		if err := repo.Delete(ctx, s.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.FindByID(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should delete idle sessions", func(t *testing.T) {
		cleanup(t)
		s := model.NewCareerSession(uuid.NewString(), "sys")
		s.LastActive = time.Now().Add(-48 * time.Hour)
		_ = repo.Save(ctx, s)
		ids, err := repo.DeleteIdle(ctx, time.Now().Add(-24*time.Hour))
		if err != nil || len(ids) != 1 || ids[0] != s.ID {
			t.Fatalf("DeleteIdle = %v, %v", ids, err)
		}
	})
}
