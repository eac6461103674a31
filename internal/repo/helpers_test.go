package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
)

// newRepoDB opens a migrated file-backed database private to the test.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// seedChat creates chat id with n user messages one second apart starting
// at t0; message i has ID fmt.Sprintf("m%02d", i+1).
func seedChat(t *testing.T, db *gorm.DB, id string, n int) []domain.Message {
	t.Helper()
	if err := db.Create(&domain.Chat{ID: id, OwnerID: "owner", Title: "t"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	out := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		m := domain.Message{
			ID:        fmt.Sprintf("m%02d", i+1),
			ChatID:    id,
			AuthorID:  "u1",
			Kind:      domain.KindUser,
			Content:   fmt.Sprintf("message %d", i+1),
			CreatedAt: t0.Add(time.Duration(i) * time.Second),
		}
		if err := CreateMessage(context.Background(), db, &m); err != nil {
			t.Fatalf("seed message: %v", err)
		}
		out = append(out, m)
	}
	return out
}
