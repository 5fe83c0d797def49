package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/loykin/loungeclock/internal/accounting"
	"github.com/loykin/loungeclock/internal/auth"
	"github.com/loykin/loungeclock/internal/panel"
	"github.com/loykin/loungeclock/internal/registry"
)

const commandTimeout = 30 * time.Second

// withPanel runs fn against a freshly loaded panel.
func (c *command) withPanel(cmd *cobra.Command, opts panel.Options, fn func(ctx context.Context, p *panel.Panel, con *console) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	s, err := c.open(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	con := newConsole(cmd.InOrStdin(), cmd.OutOrStdout())
	if opts.Notifier == nil {
		opts.Notifier = con
	}
	p, err := s.newPanel(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to load clients from %s: %w", s.client.BaseURL(), err)
	}
	return fn(ctx, p, con)
}

type listFlags struct {
	Filter string
	Sort   string
	Desc   bool
	JSON   bool
}

func createListCommand(c *command) *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients with their remaining time",
		Long: `List clients from the remote store.

Examples:
  loungeclock list
  loungeclock list --filter active --sort remaining
  loungeclock list --sort name --desc --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withPanel(cmd, panel.Options{}, func(ctx context.Context, p *panel.Panel, _ *console) error {
				return runList(cmd, p, f)
			})
		},
	}
	cmd.Flags().StringVar(&f.Filter, "filter", "all", "all, active or inactive")
	cmd.Flags().StringVar(&f.Sort, "sort", "", "role, name, phone, buyDate or remaining")
	cmd.Flags().BoolVar(&f.Desc, "desc", false, "sort descending")
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print rows as JSON")
	return cmd
}

func runList(cmd *cobra.Command, p *panel.Panel, f *listFlags) error {
	st, err := panel.ParseFilter(f.Filter)
	if err != nil {
		return err
	}
	if err := p.SetFilter(st); err != nil {
		return err
	}
	if f.Sort != "" {
		key, err := registry.ParseSortKey(f.Sort)
		if err != nil {
			return err
		}
		state, err := p.Sort(key)
		if err != nil {
			return err
		}
		if f.Desc == state.Ascending {
			if _, err := p.Sort(key); err != nil {
				return err
			}
		}
	}
	if f.JSON {
		printJSON(cmd.OutOrStdout(), p.Rows())
		return nil
	}
	printRows(cmd.OutOrStdout(), p.Rows())
	return nil
}

type addFlags struct {
	ID    string
	Name  string
	Phone string
	Role  string
	Hours string
}

func createAddCommand(c *command) *cobra.Command {
	f := &addFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a client with prepaid hours",
		Long: `Add a client. The client starts stopped.

Examples:
  loungeclock add --name Alice --phone 555-0101 --hours 2
  loungeclock add --name Bob --phone 555-0102 --role VIP --hours 0.5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withPanel(cmd, panel.Options{}, func(ctx context.Context, p *panel.Panel, con *console) error {
				secret, err := c.secret(ctx, con, "add a client")
				if err != nil {
					return err
				}
				rec, err := p.CreateClient(ctx, panel.NewClient{
					ID: f.ID, Name: f.Name, Phone: f.Phone, Role: f.Role, Hours: f.Hours,
				}, secret)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", rec.Name, rec.ID)
				return saved(p)
			})
		},
	}
	cmd.Flags().StringVar(&f.ID, "id", "", "client id (random when omitted)")
	cmd.Flags().StringVar(&f.Name, "name", "", "client name (required)")
	cmd.Flags().StringVar(&f.Phone, "phone", "", "phone number (required)")
	cmd.Flags().StringVar(&f.Role, "role", "", "membership role")
	cmd.Flags().StringVar(&f.Hours, "hours", "", "prepaid hours, fractions allowed (required)")
	return cmd
}

func createToggleCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Start or pause a client's timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withPanel(cmd, panel.Options{}, func(ctx context.Context, p *panel.Panel, con *console) error {
				if _, ok := p.Get(args[0]); !ok {
					return fmt.Errorf("%s: %w", args[0], panel.ErrNotFound)
				}
				secret, err := c.secret(ctx, con, "start or pause")
				if err != nil {
					return err
				}
				st, err := p.Toggle(ctx, args[0], secret)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], st)
				return saved(p)
			})
		},
	}
}

func createAddTimeCommand(c *command) *cobra.Command {
	var hours, minutes string
	cmd := &cobra.Command{
		Use:   "add-time <id>",
		Short: "Extend a client's prepaid time",
		Long: `Extend a client's prepaid time. Blank fields count as zero.

Examples:
  loungeclock add-time 42 --hours 1
  loungeclock add-time 42 --minutes 30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withPanel(cmd, panel.Options{}, func(ctx context.Context, p *panel.Panel, con *console) error {
				if _, ok := p.Get(args[0]); !ok {
					return fmt.Errorf("%s: %w", args[0], panel.ErrNotFound)
				}
				secret, err := c.secret(ctx, con, "add time")
				if err != nil {
					return err
				}
				secs, err := p.AddTime(ctx, args[0], hours, minutes, secret)
				if err != nil {
					return err
				}
				rec, _ := p.Get(args[0])
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", accounting.FormatDuration(secs), rec.Name)
				return saved(p)
			})
		},
	}
	cmd.Flags().StringVar(&hours, "hours", "", "whole hours to add")
	cmd.Flags().StringVar(&minutes, "minutes", "", "whole minutes to add")
	return cmd
}

func createDeleteCommand(c *command) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withPanel(cmd, panel.Options{}, func(ctx context.Context, p *panel.Panel, con *console) error {
				if _, ok := p.Get(args[0]); !ok {
					return fmt.Errorf("%s: %w", args[0], panel.ErrNotFound)
				}
				secret, err := c.secret(ctx, con, "delete")
				if err != nil {
					return err
				}
				p.SetConfirmer(con)
				if yes {
					p.SetConfirmer(panel.AlwaysConfirm{})
				}
				err = p.Delete(ctx, args[0], secret)
				if errors.Is(err, panel.ErrCancelled) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return saved(p)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func createCheckCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the remote store and the admin password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			s, err := c.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if !s.client.IsReachable(ctx) {
				return fmt.Errorf("remote store %s is not reachable", s.client.BaseURL())
			}
			_, _ = fmt.Fprintf(out, "Remote store %s is reachable\n", s.client.BaseURL())
			if c.flags.Password == "" {
				return nil
			}
			ok, err := s.client.CheckPassword(ctx, c.flags.Password)
			if err != nil {
				return err
			}
			if !ok {
				return panel.ErrUnauthorized
			}
			_, _ = fmt.Fprintln(out, "Password accepted")
			return nil
		},
	}
}

func createHashPasswordCommand() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for server.auth.password_hash",
		Long: `Read a password from stdin and print its bcrypt hash.

Examples:
  echo -n secret | loungeclock hash-password`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			con := newConsole(cmd.InOrStdin(), cmd.ErrOrStderr())
			pw, err := con.ReadLine("Password: ")
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(pw, cost)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
