package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"envanter/internal/apperr"
	"envanter/internal/models"
)

var errOnlineOnly = &apperr.Error{
	Kind:    apperr.KindValidation,
	Op:      "cli",
	Message: "Bu komut çevrimdışı kullanılamaz",
	Err:     errors.New("command needs the API"),
}

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"kullanicilar"},
		Short:   "List and manage user accounts",
	}
	cmd.AddCommand(newUsersListCmd(a), newUsersAddCmd(a), newUsersUpdateCmd(a))
	return cmd
}

// online restores the session for commands that talk to the API directly.
func (a *app) online(ctx context.Context) error {
	if a.offline {
		return errOnlineOnly
	}
	return a.session(ctx)
}

func newUsersListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List users (admins see inactive accounts too)",
		Args:    cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.online(ctx); err != nil {
				return err
			}
			users, err := a.client.ListUsers(ctx)
			if err != nil {
				return err
			}
			return a.emit(users, func(w io.Writer) error {
				t := newTable(w, "KULLANICI", "AD", "E-POSTA", "ROL")
				for _, u := range users {
					t.row(dash(u.Username), dash(u.FullName), dash(u.Email), u.Role)
				}
				return t.flush()
			})
		}),
	}
}

func newUsersAddCmd(a *app) *cobra.Command {
	var req models.CreateUserRequest
	var fullName string
	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Create an account (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if err := a.online(ctx); err != nil {
				return err
			}
			if !models.IsValidRole(req.Role) {
				return apperr.Validation("cli", fmt.Errorf("invalid role %q", req.Role))
			}
			if !cmd.Flags().Changed("password") {
				p, err := readPassword(cmd.ErrOrStderr(), a.in)
				if err != nil {
					return err
				}
				req.Password = p
			}
			req.Email = args[0]
			if fullName != "" {
				req.FullName = &fullName
			}
			u, err := a.client.CreateUser(ctx, req)
			if err != nil {
				return err
			}
			return a.emit(u, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Kullanıcı oluşturuldu: %s (%s, %s)\n", u.Email, u.Role, u.ID)
				return err
			})
		}),
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "login name")
	cmd.Flags().StringVar(&fullName, "name", "", "full name")
	cmd.Flags().StringVar(&req.Role, "role", models.RoleUser, "admin or user")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (prompted when omitted)")
	return cmd
}

func newUsersUpdateCmd(a *app) *cobra.Command {
	var (
		role, fullName string
		active         bool
	)
	cmd := &cobra.Command{
		Use:   "update <username|email|id>",
		Short: "Change a user's role, name or active flag (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if err := a.online(ctx); err != nil {
				return err
			}
			var patch models.UserPatch
			if cmd.Flags().Changed("role") {
				patch.Role = &role
			}
			if cmd.Flags().Changed("name") {
				patch.FullName = &fullName
			}
			if cmd.Flags().Changed("active") {
				patch.IsActive = &active
			}
			if err := patch.Validate(); err != nil {
				return apperr.Validation("cli", err)
			}
			id, err := a.userID(ctx, args[0])
			if err != nil {
				return err
			}
			u, err := a.client.UpdateUser(ctx, id, patch)
			if err != nil {
				return err
			}
			return a.emit(u, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Güncellendi: %s (%s, aktif=%v)\n", u.Email, u.Role, u.IsActive)
				return err
			})
		}),
	}
	cmd.Flags().StringVar(&role, "role", "", "admin or user")
	cmd.Flags().StringVar(&fullName, "name", "", "full name")
	cmd.Flags().BoolVar(&active, "active", true, "whether the account may sign in")
	return cmd
}

// userID resolves a username, email or id against the user directory.
func (a *app) userID(ctx context.Context, ref string) (string, error) {
	users, err := a.client.ListUsers(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.ID == ref || strings.EqualFold(u.Username, ref) || strings.EqualFold(u.Email, ref) {
			return u.ID, nil
		}
	}
	return "", notFound("user", ref)
}
