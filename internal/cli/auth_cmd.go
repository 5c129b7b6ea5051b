package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"envanter/internal/identity"
	"envanter/internal/models"
)

func newLoginCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username|email>",
		Short: "Sign in and remember the session",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if a.offline {
				return errOffline
			}
			if !cmd.Flags().Changed("password") {
				p, err := readPassword(cmd.ErrOrStderr(), a.in)
				if err != nil {
					return err
				}
				password = p
			}
			profile, err := a.holder.Login(ctx, args[0], password)
			if err != nil {
				return err
			}
			return a.emit(profile, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Hoş geldiniz, %s (%s)\n", profile.DisplayName(), profile.Role)
				return err
			})
		}),
	}
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(prompt io.Writer, in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Şifre: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			// Restore first so the remote session is revoked too.
			if !a.offline {
				if err := a.holder.Init(ctx); err != nil {
					a.logger.Warn("restore session before logout", "error", err)
				}
			}
			if err := a.holder.Logout(ctx); err != nil {
				return err
			}
			if a.output != "json" {
				fmt.Fprintln(a.out, "Oturum kapatıldı")
			}
			return nil
		}),
	}
}

type whoami struct {
	State   string          `json:"state"`
	Profile *models.Profile `json:"profile,omitempty"`
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.session(ctx); err != nil {
				return err
			}
			out := whoami{State: a.holder.State().String()}
			if p, ok := a.holder.Current(); ok {
				out.Profile = &p
			}
			return a.emit(out, func(w io.Writer) error {
				if out.Profile == nil {
					_, err := fmt.Fprintln(w, out.State)
					return err
				}
				t := newTable(w, "ID", "AD", "E-POSTA", "KULLANICI", "ROL")
				p := out.Profile
				t.row(p.ID, p.DisplayName(), dash(p.Email), dash(p.Username), p.Role)
				return t.flush()
			})
		}),
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow auth events for this session until it ends or Ctrl-C",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if a.offline {
				return errOffline
			}
			if err := a.session(ctx); err != nil {
				return err
			}
			unsubscribe := a.holder.OnChange(func(ch identity.Change) {
				if a.output == "json" {
					_ = printJSON(a.out, map[string]any{"from": ch.From.String(), "to": ch.To.String(), "profile": ch.Profile})
					return
				}
				name := "-"
				if ch.Profile != nil {
					name = ch.Profile.DisplayName()
				}
				fmt.Fprintf(a.out, "%s -> %s (%s)\n", ch.From, ch.To, name)
			})
			defer unsubscribe()

			err := a.holder.Watch(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}),
	}
}
