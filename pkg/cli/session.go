package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/driver/webdriver"
	"github.com/devicelab-dev/basil/pkg/logger"
	"github.com/devicelab-dev/basil/pkg/session"
)

var sessionCommand = &cli.Command{
	Name:  "session",
	Usage: "Manage reusable remote browser sessions",
	Subcommands: []*cli.Command{
		{
			Name:   "start",
			Usage:  "Start or reattach a session and leave it running",
			Action: sessionStart,
		},
		{
			Name:  "list",
			Usage: "List recorded sessions",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "check", Usage: "Ask each server whether the session is still alive"},
			},
			Action: sessionList,
		},
		{
			Name:      "stop",
			Usage:     "Quit recorded sessions",
			ArgsUsage: "[session-id]...",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "all", Usage: "Stop every recorded session"},
			},
			Action: sessionStop,
		},
	},
}

func sessionStart(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg.WebDriver.Type = config.DriverReusableRemote
	if err := cfg.Validate(); err != nil {
		return err
	}

	d, release, err := createDriver(c.Context, cfg)
	if err != nil {
		return err
	}
	id := d.SessionID()
	release()

	fmt.Fprintf(out(c), "session %s ready on %s\n", id, cfg.WebDriver.RemoteURL)
	return nil
}

func sessionStore(c *cli.Context) (*session.Store, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return session.NewStore(appFs, cfg.SessionFilePath()), nil
}

func sessionList(c *cli.Context) error {
	store, err := sessionStore(c)
	if err != nil {
		return err
	}
	records, err := store.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out(c), "No sessions recorded")
		return nil
	}

	header := []interface{}{"ID", "Server", "Browser", "Created", "Last Used"}
	if c.Bool("check") {
		header = append(header, "Alive")
	}
	table := tablewriter.NewWriter(out(c))
	table.Header(header...)
	for _, r := range records {
		row := []interface{}{r.ID, r.ServerURL, r.Browser, formatTime(r.CreatedAt), formatTime(r.LastUsed)}
		if c.Bool("check") {
			row = append(row, aliveLabel(c, r))
		}
		if err := table.Append(row...); err != nil {
			return err
		}
	}
	return table.Render()
}

func aliveLabel(c *cli.Context, r session.Record) string {
	ok, err := session.Alive(c.Context, webdriver.NewClient(r.ServerURL), r.ID)
	switch {
	case err != nil:
		return "unreachable"
	case ok:
		return "yes"
	}
	return "no"
}

func sessionStop(c *cli.Context) error {
	store, err := sessionStore(c)
	if err != nil {
		return err
	}
	if !c.Bool("all") && c.NArg() == 0 {
		return fmt.Errorf("give session ids or --all")
	}
	records, err := store.List()
	if err != nil {
		return err
	}

	wanted := make(map[string]bool)
	for _, id := range c.Args().Slice() {
		wanted[id] = true
	}
	stopped := 0
	for _, r := range records {
		if !c.Bool("all") && !wanted[r.ID] {
			continue
		}
		delete(wanted, r.ID)
		client := webdriver.NewClient(r.ServerURL)
		client.Attach(r.ID)
		if err := client.Disconnect(c.Context); err != nil && !errors.Is(err, core.ErrSessionNotFound) {
			logger.Warn("stop session %s: %v", r.ID, err)
			fmt.Fprintf(out(c), "session %s: %v\n", r.ID, err)
			continue
		}
		if err := store.Remove(r.ID); err != nil {
			return err
		}
		stopped++
		fmt.Fprintf(out(c), "session %s stopped\n", r.ID)
	}
	for id := range wanted {
		fmt.Fprintf(out(c), "session %s is not recorded\n", id)
	}
	if stopped == 0 && c.Bool("all") {
		fmt.Fprintln(out(c), "No sessions recorded")
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
