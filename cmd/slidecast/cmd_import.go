/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/quietloom/slidecast/internal/models"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import content from deck files",
	Long:  "Import rows and slides from YAML deck files",
}

var importDeckCmd = &cobra.Command{
	Use:   "deck <file.yaml>",
	Short: "Import a row and its slides from a YAML deck file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportDeck,
}

var (
	deckDryRun  bool
	deckReplace bool
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importDeckCmd)

	importDeckCmd.Flags().BoolVar(&deckDryRun, "dry-run", false, "Parse and validate the deck without importing")
	importDeckCmd.Flags().BoolVar(&deckReplace, "replace", false, "Replace the slides of an existing row with the same slug")
}

// deckFile is the on-disk YAML shape for a row and its slides.
type deckFile struct {
	Row struct {
		Name                 string `yaml:"name"`
		Slug                 string `yaml:"slug"`
		Description          string `yaml:"description"`
		PlaylistDelaySeconds int    `yaml:"playlist_delay_seconds"`
		Position             int    `yaml:"position"`
	} `yaml:"row"`
	Slides []struct {
		Title            string `yaml:"title"`
		Body             string `yaml:"body"`
		ImageURL         string `yaml:"image_url"`
		AudioURL         string `yaml:"audio_url"`
		IsPublished      *bool  `yaml:"is_published"`
		PublishTimeStart string `yaml:"publish_time_start"`
		PublishTimeEnd   string `yaml:"publish_time_end"`
		PublishDays      string `yaml:"publish_days"`
	} `yaml:"slides"`
}

func runImportDeck(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	path := args[0]
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read deck file: %w", err)
	}

	var deck deckFile
	if err := yaml.Unmarshal(raw, &deck); err != nil {
		return fmt.Errorf("parse deck file: %w", err)
	}

	if deck.Row.Name == "" {
		return fmt.Errorf("deck file %s: row.name is required", path)
	}
	if deck.Row.Slug == "" {
		deck.Row.Slug = slugify(deck.Row.Name)
	}
	if deck.Row.PlaylistDelaySeconds < 0 || deck.Row.PlaylistDelaySeconds > 45 {
		return fmt.Errorf("deck file %s: playlist_delay_seconds must be between 0 and 45", path)
	}

	audioSlides := 0
	for _, s := range deck.Slides {
		if s.AudioURL != "" {
			audioSlides++
		}
	}

	logger.Info().
		Str("file", path).
		Str("row", deck.Row.Name).
		Int("slides", len(deck.Slides)).
		Int("audio_slides", audioSlides).
		Bool("dry_run", deckDryRun).
		Msg("deck parsed")

	if deckDryRun {
		fmt.Printf("\nImport Preview:\n")
		fmt.Printf("  Row:          %s (slug %s)\n", deck.Row.Name, deck.Row.Slug)
		fmt.Printf("  Slides:       %d\n", len(deck.Slides))
		fmt.Printf("  Audio slides: %d\n", audioSlides)
		fmt.Printf("\nRun without --dry-run to perform the import.\n")
		return nil
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	defer sqlDB.Close()

	err = database.Transaction(func(tx *gorm.DB) error {
		var row models.Row
		result := tx.First(&row, "slug = ?", deck.Row.Slug)
		switch {
		case result.Error == nil:
			if !deckReplace {
				return fmt.Errorf("row with slug %q already exists (use --replace)", deck.Row.Slug)
			}
			if err := tx.Delete(&models.Slide{}, "row_id = ?", row.ID).Error; err != nil {
				return fmt.Errorf("clear existing slides: %w", err)
			}
			row.Name = deck.Row.Name
			row.Description = deck.Row.Description
			row.PlaylistDelaySeconds = deck.Row.PlaylistDelaySeconds
			row.Position = deck.Row.Position
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("update row: %w", err)
			}
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			row = models.Row{
				ID:                   uuid.NewString(),
				Name:                 deck.Row.Name,
				Slug:                 deck.Row.Slug,
				Description:          deck.Row.Description,
				PlaylistDelaySeconds: deck.Row.PlaylistDelaySeconds,
				Position:             deck.Row.Position,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create row: %w", err)
			}
		default:
			return fmt.Errorf("look up row: %w", result.Error)
		}

		for i, s := range deck.Slides {
			slide := models.Slide{
				ID:               uuid.NewString(),
				RowID:            row.ID,
				Position:         i,
				Title:            s.Title,
				Body:             s.Body,
				ImageURL:         s.ImageURL,
				AudioURL:         s.AudioURL,
				IsPublished:      true,
				PublishTimeStart: s.PublishTimeStart,
				PublishTimeEnd:   s.PublishTimeEnd,
				PublishDays:      s.PublishDays,
			}
			if s.IsPublished != nil {
				slide.IsPublished = *s.IsPublished
			}
			if err := tx.Create(&slide).Error; err != nil {
				return fmt.Errorf("create slide %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("\nImport Complete!\n")
	fmt.Printf("  Row:    %s\n", deck.Row.Slug)
	fmt.Printf("  Slides: %d imported\n", len(deck.Slides))

	logger.Info().Str("row", deck.Row.Slug).Msg("deck import completed")
	return nil
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
