/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/quietloom/slidecast/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.User{},
		&models.APIKey{},
		&models.Row{},
		&models.Slide{},
		&models.AmbientTrack{},
		&models.PlayHistory{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Reset drops all application tables. Used by the reset command only.
func Reset(database *gorm.DB) error {
	return database.Migrator().DropTable(
		&models.PlayHistory{},
		&models.AmbientTrack{},
		&models.Slide{},
		&models.Row{},
		&models.APIKey{},
		&models.User{},
	)
}
