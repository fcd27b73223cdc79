/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quietloom/slidecast/internal/db"
	"github.com/quietloom/slidecast/internal/models"
)

var (
	resetForce     bool
	resetKeepUsers int
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the database to a fresh state",
	Long: `Reset Slidecast to a fresh state.

This command drops all tables and re-creates an empty schema.

WARNING: This action is irreversible! All rows, slides, ambient tracks,
play history, and users will be lost.

Examples:
  # Interactive reset (will prompt for confirmation)
  slidecast reset

  # Force reset without confirmation
  slidecast reset --force

  # Reset but keep up to 2 admin users
  slidecast reset --force --keep-users=2
`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation prompt")
	resetCmd.Flags().IntVar(&resetKeepUsers, "keep-users", 0, "Number of admin users to preserve (0 = delete all)")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if !resetForce {
		fmt.Println("\nWARNING: this will delete ALL Slidecast data:")
		if resetKeepUsers > 0 {
			fmt.Printf("  - all users except the first %d admin user(s)\n", resetKeepUsers)
		} else {
			fmt.Println("  - all users and API keys")
		}
		fmt.Println("  - all rows and slides")
		fmt.Println("  - all ambient tracks and play history")
		fmt.Println("\nThis action cannot be undone.")

		fmt.Print("\nType 'yes' to confirm reset: ")
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	logger.Info().Int("keep_users", resetKeepUsers).Msg("starting database reset")

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	defer sqlDB.Close()

	var preservedUsers []models.User
	if resetKeepUsers > 0 {
		database.Where("role = ?", models.RoleAdmin).
			Order("created_at ASC").
			Limit(resetKeepUsers).
			Find(&preservedUsers)
		for _, u := range preservedUsers {
			logger.Info().Str("user_id", u.ID).Str("email", u.Email).Msg("preserving user")
		}
	}

	logger.Info().Msg("dropping all tables")
	if err := db.Reset(database); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}

	logger.Info().Msg("creating fresh database schema")
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	for _, u := range preservedUsers {
		u.UpdatedAt = u.CreatedAt
		if err := database.Create(&u).Error; err != nil {
			logger.Error().Err(err).Str("email", u.Email).Msg("failed to restore user")
			continue
		}
		logger.Info().Str("email", u.Email).Msg("user restored")
	}

	logger.Info().Msg("reset complete")
	fmt.Println("\nSlidecast has been reset to a fresh state.")
	fmt.Println("Next steps:")
	fmt.Println("  1. Create an admin account: slidecast user add --role admin")
	fmt.Println("  2. Start the server:        slidecast serve")
	return nil
}
