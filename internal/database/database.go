package database

import (
	"log"
	"strings"

	"github.com/evorto/evorto-api/internal/config"
	"github.com/evorto/evorto-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AllModels is the migration set, shared with tests.
var AllModels = []any{
	&models.Tenant{},
	&models.User{},
	&models.Role{},
	&models.UserTenant{},
	&models.Event{},
	&models.RegistrationOption{},
	&models.DiscountCard{},
	&models.EventRegistration{},
	&models.TenantStripeTaxRate{},
	&models.FinanceReceipt{},
	&models.Transaction{},
}

// dialector picks postgres for any DATABASE_URL and falls back to a local
// sqlite file.
func dialector(cfg *config.Config) (gorm.Dialector, string) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn != "" {
		return postgres.Open(dsn), "postgres"
	}
	return sqlite.Open(cfg.DatabasePath), cfg.DatabasePath
}

func Connect(cfg *config.Config) *gorm.DB {
	d, name := dialector(cfg)
	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("Failed to auto migrate: %v", err)
	}

	log.Printf("Database %s connected and migrated", name)
	return db
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels...)
}
