package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/logmailer/internal/app"
	"github.com/logmailer/internal/auth"
	"github.com/logmailer/internal/logmail"
	"github.com/logmailer/internal/model"
	"github.com/logmailer/internal/store"
)

var (
	adminEmail    string
	adminPassword string
	adminRole     string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(adminEmail)
		if !logmail.ValidEmail(email) {
			return fmt.Errorf("invalid email %q", adminEmail)
		}
		if err := auth.CheckPassword(adminPassword); err != nil {
			return err
		}
		role := model.Role(adminRole)
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", adminRole)
		}

		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			if _, _, err := a.Users().GetByEmail(ctx, email); err == nil {
				return fmt.Errorf("%s already exists", email)
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}

			hash, err := auth.Hash(adminPassword)
			if err != nil {
				return err
			}
			id := auth.NewID()
			if err := a.Users().Create(ctx, id, email, hash, string(role)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", email, role, id)
			return nil
		})
	},
}

func init() {
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "account email")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "account password")
	adminCreateCmd.Flags().StringVar(&adminRole, "role", string(model.RoleAdministrator), "administrator or viewer")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")

	adminCmd.AddCommand(adminCreateCmd)
}
