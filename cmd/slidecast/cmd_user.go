/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/quietloom/slidecast/internal/models"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user account",
	Long:  "Create a user account. Intended for bootstrapping the first admin; further accounts are normally created through the API.",
	RunE:  runUserAdd,
}

var (
	userAddEmail    string
	userAddName     string
	userAddRole     string
	userAddPassword string
)

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)

	userAddCmd.Flags().StringVar(&userAddEmail, "email", "", "Account email (required)")
	userAddCmd.Flags().StringVar(&userAddName, "name", "", "Display name")
	userAddCmd.Flags().StringVar(&userAddRole, "role", string(models.RoleViewer), "Role: admin, editor, or viewer")
	userAddCmd.Flags().StringVar(&userAddPassword, "password", "", "Password (prompted when omitted)")
	userAddCmd.MarkFlagRequired("email")
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	role := models.RoleName(userAddRole)
	if role != models.RoleAdmin && role != models.RoleEditor && role != models.RoleViewer {
		return fmt.Errorf("invalid role %q", userAddRole)
	}

	password := userAddPassword
	if password == "" {
		fmt.Print("Password: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
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

	user := models.User{
		ID:       uuid.NewString(),
		Email:    userAddEmail,
		Password: string(hash),
		Name:     userAddName,
		Role:     role,
	}
	if err := database.Create(&user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	logger.Info().Str("user_id", user.ID).Str("email", user.Email).Str("role", string(user.Role)).Msg("user created")
	fmt.Printf("Created %s user %s\n", user.Role, user.Email)
	return nil
}
