package database

import (
	"log"

	"github.com/AlphaSudo/HmS2/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// gen_random_uuid() needs pgcrypto on Postgres < 13
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		log.Println("WARNING: Failed to enable pgcrypto extension:", err)
	}

	if err := db.AutoMigrate(&model.Invoice{}); err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}
