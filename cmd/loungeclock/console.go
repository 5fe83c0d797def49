package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/loykin/loungeclock/internal/panel"
)

// console reads operator input line by line and implements the panel's
// credential, confirmation and notification ports.
type console struct {
	mu  sync.Mutex // guards out
	in  *bufio.Reader
	out io.Writer
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{in: bufio.NewReader(in), out: out}
}

// ReadLine prints prompt and returns the next trimmed line. io.EOF is returned
// only when no input is left. Only one goroutine may read at a time.
func (c *console) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		c.mu.Lock()
		_, _ = fmt.Fprint(c.out, prompt)
		c.mu.Unlock()
	}
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *console) Secret(_ context.Context, prompt string) (string, error) {
	return c.ReadLine(prompt)
}

func (c *console) Confirm(_ context.Context, prompt string) (bool, error) {
	ans, err := c.ReadLine(prompt + " [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(ans) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (c *console) Notify(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, "!", msg)
}

// printRows writes rows as an aligned table. Low-time rows are marked with '*'.
func printRows(w io.Writer, rows []panel.Row) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tPHONE\tROLE\tBOUGHT\tSTATE\tREMAINING\t")
	for _, r := range rows {
		mark := ""
		if r.LowTime {
			mark = " *"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s%s\t\n",
			r.ID, r.Name, r.Phone, r.Role, r.BuyDate, r.State, r.Display, mark)
	}
	_ = tw.Flush()
}

// lowTimeWatcher announces each running client once when it drops into the
// low-time window. It runs on the panel loop goroutine.
type lowTimeWatcher struct {
	notify func(string)
	warned map[string]bool
}

func newLowTimeWatcher(notify func(string)) *lowTimeWatcher {
	return &lowTimeWatcher{notify: notify, warned: make(map[string]bool)}
}

func (w *lowTimeWatcher) Render(rows []panel.Row) {
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		seen[r.ID] = true
		if !r.LowTime || !r.Running() {
			delete(w.warned, r.ID)
			continue
		}
		if !w.warned[r.ID] {
			w.warned[r.ID] = true
			w.notify(fmt.Sprintf("Client %s has %s left.", r.Name, r.Display))
		}
	}
	for id := range w.warned {
		if !seen[id] {
			delete(w.warned, id)
		}
	}
}
