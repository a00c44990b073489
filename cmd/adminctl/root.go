package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/MGallo-Code/adminity/internal/auth"
	"github.com/MGallo-Code/adminity/internal/session"
	"github.com/MGallo-Code/adminity/internal/store"
	"github.com/MGallo-Code/adminity/migrations"
	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"
)

// PasswordEnv is read when --password is not given, keeping the secret out of shell history.
const PasswordEnv = "ADMINCTL_PASSWORD"

// adminCreator is the slice of the store create-admin needs.
type adminCreator interface {
	CreateAdmin(ctx context.Context, a *store.Admin) error
}

// app carries the CLI's side effects so commands can run against fakes.
type app struct {
	getenv    func(string) string
	openStore func(ctx context.Context, databaseURL string) (adminCreator, func(), error)
}

func defaultApp() *app {
	return &app{getenv: os.Getenv, openStore: openPostgres}
}

// openPostgres connects and brings the schema up to date before any insert.
func openPostgres(ctx context.Context, databaseURL string) (adminCreator, func(), error) {
	ps, err := store.NewPostgresStore(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := ps.Migrate(ctx, migrations.FS); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return ps, ps.Close, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "adminctl",
		Short:        "Operator tools for the Adminity console",
		SilenceUsage: true,
	}
	root.AddCommand(newHashPasswordCmd(a), newCreateAdminCmd(a))
	return root
}

func newHashPasswordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash suitable for the admins.password_hash column",
		Long: `Hash a password with the same cost the console uses.

The password is taken from the argument, or from ` + PasswordEnv + ` when no
argument is given.

Examples:
  adminctl hash-password 'correct horse battery'
  ADMINCTL_PASSWORD='correct horse battery' adminctl hash-password`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := a.getenv(PasswordEnv)
			if len(args) == 1 {
				password = args[0]
			}
			if err := checkPassword(password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	return cmd
}

func newCreateAdminCmd(a *app) *cobra.Command {
	var email, name, role, password, databaseURL string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: `Create an administrator directly in Postgres. Pending migrations are
applied first, so this works against an empty database.

Examples:
  ADMINCTL_PASSWORD=... adminctl create-admin --email ada@example.com --name "Ada Lovelace" --role superadmin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.ToLower(strings.TrimSpace(email))
			name = strings.TrimSpace(name)
			if password == "" {
				password = a.getenv(PasswordEnv)
			}
			if databaseURL == "" {
				databaseURL = a.getenv("DATABASE_URL")
			}

			if !auth.ValidEmail(email) {
				return fmt.Errorf("invalid email %q", email)
			}
			if utf8.RuneCountInString(name) < 2 {
				return errors.New("name must be at least 2 characters")
			}
			r, ok := session.ParseRole(role)
			if !ok {
				return fmt.Errorf("invalid role %q (want %s or %s)", role, session.RoleAdmin, session.RoleSuperAdmin)
			}
			if err := checkPassword(password); err != nil {
				return err
			}
			if databaseURL == "" {
				return errors.New("--database-url or DATABASE_URL is required")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}

			s, closeStore, err := a.openStore(cmd.Context(), databaseURL)
			if err != nil {
				return err
			}
			defer closeStore()

			admin := &store.Admin{ID: id, Name: name, Email: email, Role: string(r), PasswordHash: hash}
			if err := s.CreateAdmin(cmd.Context(), admin); err != nil {
				if errors.Is(err, store.ErrDuplicateEmail) {
					return fmt.Errorf("an admin with email %s already exists", email)
				}
				return fmt.Errorf("creating admin: %w", err)
			}
			printAdmin(cmd.OutOrStdout(), admin)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&role, "role", string(session.RoleAdmin), "admin or superadmin")
	cmd.Flags().StringVar(&password, "password", "", "password (default $"+PasswordEnv+")")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres URL (default $DATABASE_URL)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func checkPassword(password string) error {
	switch {
	case password == "":
		return fmt.Errorf("password is required (argument, --password or %s)", PasswordEnv)
	case len(password) < auth.MinPasswordLength:
		return fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
	case len(password) > auth.MaxPasswordBytes:
		return fmt.Errorf("password must be at most %d bytes", auth.MaxPasswordBytes)
	}
	return nil
}

func printAdmin(w io.Writer, a *store.Admin) {
	fmt.Fprintf(w, "created %s admin %s <%s>\n", a.Role, a.ID, a.Email)
}
