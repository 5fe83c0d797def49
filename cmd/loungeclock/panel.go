package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/loungeclock/internal/metrics"
	"github.com/loykin/loungeclock/internal/panel"
	"github.com/loykin/loungeclock/internal/registry"
)

const panelHelp = `Commands:
  list                          show clients
  filter all|active|inactive    change the status filter
  sort <key>                    role, name, phone, buyDate, remaining (repeat to reverse)
  add <name> <phone> <hours> [role]
  toggle <id>                   start or pause
  time <id> <hours> [minutes]   add time
  delete <id>
  refresh                       pull from the remote store
  help
  quit`

const pendingSyncNotice = "Saved locally; will sync with the remote store on the next change."

func createPanelCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "panel",
		Short: "Interactive admin panel",
		Long: `Run the admin panel. Timers tick every panel.tick and the client list
is pulled every panel.refresh while no local changes are pending.

` + panelHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runPanel(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func (c *command) runPanel(ctx context.Context, in io.Reader, out, errOut io.Writer) error {
	s, err := c.open(errOut)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return err
		}
		srv := &http.Server{Addr: s.cfg.Metrics.Listen, Handler: metrics.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() { _ = srv.ListenAndServe() }()
		defer func() { _ = srv.Close() }()
	}

	con := newConsole(in, out)
	p := panel.New(s.client, panel.Options{
		Logger:    s.logger,
		Notifier:  con,
		Renderer:  newLowTimeWatcher(con.Notify),
		Confirmer: con,
	})
	loop, err := panel.NewLoop(p, panel.LoopConfig{Tick: s.cfg.Panel.Tick, Refresh: s.cfg.Panel.Refresh})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	r := &repl{cmd: c, loop: loop, con: con, out: out}
	_, _ = fmt.Fprintf(out, "Connected to %s. Type 'help' for commands.\n", s.client.BaseURL())

	// The reader may stay blocked on input after a signal; it is abandoned on exit.
	replDone := make(chan error, 1)
	go func() { replDone <- r.run(ctx) }()
	var rerr error
	select {
	case rerr = <-replDone:
	case <-ctx.Done():
	}
	cancel()
	<-done
	if rerr != nil && !errors.Is(rerr, io.EOF) && !errors.Is(rerr, context.Canceled) {
		return rerr
	}
	return nil
}

// repl reads operator commands and runs them on the panel loop.
// Secrets are read before entering the loop so prompts never stall ticking.
type repl struct {
	cmd  *command
	loop *panel.Loop
	con  *console
	out  io.Writer
}

func (r *repl) run(ctx context.Context) error {
	for {
		line, err := r.con.ReadLine("> ")
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := r.exec(ctx, fields[0], fields[1:]); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			_, _ = fmt.Fprintln(r.out, "error:", err)
		}
	}
}

func (r *repl) exec(ctx context.Context, name string, args []string) error {
	switch name {
	case "help":
		_, _ = fmt.Fprintln(r.out, panelHelp)
		return nil
	case "list", "ls":
		return r.do(ctx, func(_ context.Context, p *panel.Panel) error {
			printRows(r.out, p.Rows())
			return nil
		})
	case "refresh":
		return r.do(ctx, func(ctx context.Context, p *panel.Panel) error {
			if err := p.Load(ctx); err != nil {
				return err
			}
			printRows(r.out, p.Rows())
			return nil
		})
	case "filter":
		if len(args) != 1 {
			return errors.New("usage: filter all|active|inactive")
		}
		st, err := panel.ParseFilter(args[0])
		if err != nil {
			return err
		}
		return r.do(ctx, func(_ context.Context, p *panel.Panel) error {
			if err := p.SetFilter(st); err != nil {
				return err
			}
			printRows(r.out, p.Rows())
			return nil
		})
	case "sort":
		if len(args) != 1 {
			return errors.New("usage: sort <key>")
		}
		key, err := registry.ParseSortKey(args[0])
		if err != nil {
			return err
		}
		return r.do(ctx, func(_ context.Context, p *panel.Panel) error {
			st, err := p.Sort(key)
			if err != nil {
				return err
			}
			dir := "ascending"
			if !st.Ascending {
				dir = "descending"
			}
			_, _ = fmt.Fprintf(r.out, "Sorted by %s, %s\n", st.Key, dir)
			printRows(r.out, p.Rows())
			return nil
		})
	case "add":
		if len(args) < 3 {
			return errors.New("usage: add <name> <phone> <hours> [role]")
		}
		in := panel.NewClient{Name: args[0], Phone: args[1], Hours: args[2]}
		if len(args) > 3 {
			in.Role = strings.Join(args[3:], " ")
		}
		return r.mutate(ctx, "add a client", func(ctx context.Context, p *panel.Panel, secret string) error {
			rec, err := p.CreateClient(ctx, in, secret)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(r.out, "Added %s (%s)\n", rec.Name, rec.ID)
			return nil
		})
	case "toggle":
		if len(args) != 1 {
			return errors.New("usage: toggle <id>")
		}
		return r.mutate(ctx, "start or pause", func(ctx context.Context, p *panel.Panel, secret string) error {
			st, err := p.Toggle(ctx, args[0], secret)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(r.out, "%s is now %s\n", args[0], st)
			return nil
		})
	case "time":
		if len(args) < 2 || len(args) > 3 {
			return errors.New("usage: time <id> <hours> [minutes]")
		}
		minutes := ""
		if len(args) == 3 {
			minutes = args[2]
		}
		return r.mutate(ctx, "add time", func(ctx context.Context, p *panel.Panel, secret string) error {
			_, err := p.AddTime(ctx, args[0], args[1], minutes, secret)
			return err
		})
	case "delete", "rm":
		if len(args) != 1 {
			return errors.New("usage: delete <id>")
		}
		return r.mutate(ctx, "delete", func(ctx context.Context, p *panel.Panel, secret string) error {
			err := p.Delete(ctx, args[0], secret)
			if errors.Is(err, panel.ErrCancelled) {
				_, _ = fmt.Fprintln(r.out, "Cancelled")
				return nil
			}
			return err
		})
	}
	return fmt.Errorf("unknown command %q, type 'help'", name)
}

// do runs fn on the loop goroutine and returns its error.
func (r *repl) do(ctx context.Context, fn func(ctx context.Context, p *panel.Panel) error) error {
	var ferr error
	if err := r.loop.Do(ctx, func(ctx context.Context, p *panel.Panel) { ferr = fn(ctx, p) }); err != nil {
		return err
	}
	return ferr
}

// mutate reads the secret and then applies fn on the loop. The change stays
// applied locally when the push fails; the next successful push carries it.
func (r *repl) mutate(ctx context.Context, action string, fn func(ctx context.Context, p *panel.Panel, secret string) error) error {
	secret, err := r.cmd.secret(ctx, r.con, action)
	if err != nil {
		return err
	}
	return r.do(ctx, func(ctx context.Context, p *panel.Panel) error {
		if err := fn(ctx, p, secret); err != nil {
			return err
		}
		if saved(p) != nil {
			_, _ = fmt.Fprintln(r.out, pendingSyncNotice)
		}
		return nil
	})
}
