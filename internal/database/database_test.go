package database

import (
	"testing"

	"github.com/evorto/evorto-api/internal/config"
	"github.com/evorto/evorto-api/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestDialector(t *testing.T) {
	_, name := dialector(&config.Config{DatabasePath: "local.db"})
	if name != "local.db" {
		t.Errorf("expected sqlite file, got %s", name)
	}

	_, name = dialector(&config.Config{DatabaseURL: "postgres://evorto@localhost/evorto", DatabasePath: "local.db"})
	if name != "postgres" {
		t.Errorf("expected postgres, got %s", name)
	}
}

func TestMigrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	for _, m := range []any{&models.EventRegistration{}, &models.FinanceReceipt{}, &models.Transaction{}} {
		if !db.Migrator().HasTable(m) {
			t.Errorf("expected table for %T", m)
		}
	}
}
