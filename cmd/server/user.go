package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atinyakov/commlog/internal/auth"
	"github.com/atinyakov/commlog/internal/db"
	"github.com/atinyakov/commlog/internal/models"
	"github.com/atinyakov/commlog/internal/repository"
	"github.com/atinyakov/commlog/internal/service"
)

func newUserCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCmd(gf))
	return cmd
}

// userCreateFlags are the fields of "user create".
type userCreateFlags struct {
	username  string
	password  string
	email     string
	role      string
	firstName string
	lastName  string
}

func (f userCreateFlags) request() (models.RegisterRequest, models.Role) {
	return models.RegisterRequest{
		Username:  f.username,
		Email:     f.email,
		Password:  f.password,
		FirstName: f.firstName,
		LastName:  f.lastName,
	}, models.Role(f.role)
}

func newUserCreateCmd(gf *globalFlags) *cobra.Command {
	var f userCreateFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user, typically the first admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, role := f.request()
			if !role.Valid() {
				return fmt.Errorf("unknown role %q", f.role)
			}

			opts, err := loadOptions(cmd, gf)
			if err != nil {
				return err
			}
			conn, err := db.InitPostgres(cmd.Context(), opts.Database.DSN)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.RunMigrations(cmd.Context(), conn); err != nil {
				return err
			}
			hasher, err := auth.NewHasher(opts.Auth.BcryptCost)
			if err != nil {
				return err
			}

			svc := service.NewAuthService(
				repository.NewPostgresUserRepository(conn),
				auth.NewSigner(opts.Auth.Secret, opts.Auth.TokenTTL),
				hasher,
				opts.Auth.Scheme,
			)
			u, err := svc.CreateUser(cmd.Context(), req, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (%s)\n", u.Role, u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.username, "username", "", "login name")
	cmd.Flags().StringVar(&f.password, "password", "", "password")
	cmd.Flags().StringVar(&f.email, "email", "", "contact email")
	cmd.Flags().StringVar(&f.role, "role", string(models.RoleUser), "role: user or admin")
	cmd.Flags().StringVar(&f.firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&f.lastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
