package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/jsengine"
	"github.com/devicelab-dev/basil/pkg/report"
	"github.com/devicelab-dev/basil/pkg/xpath"
)

var xpathCommand = &cli.Command{
	Name:  "xpath",
	Usage: "Build XPath expressions the way basil concatenates locators",
	Subcommands: []*cli.Command{
		{
			Name:      "append",
			Usage:     "Join expressions into one XPath",
			ArgsUsage: "<expr>...",
			Action: func(c *cli.Context) error {
				if c.NArg() == 0 {
					return fmt.Errorf("usage: basil xpath append <expr>...")
				}
				fmt.Fprintln(out(c), xpath.Append(c.Args().Slice()...))
				return nil
			},
		},
		{
			Name:      "convert",
			Usage:     "Print the XPath equivalent of a locator",
			ArgsUsage: "<strategy> <value>",
			Action:    xpathConvert,
		},
		{
			Name:      "abbreviate",
			Usage:     "Rewrite long axis names into their short form",
			ArgsUsage: "<expr>",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return fmt.Errorf("usage: basil xpath abbreviate <expr>")
				}
				fmt.Fprintln(out(c), xpath.Abbreviate(c.Args().First()))
				return nil
			},
		},
	},
}

func xpathConvert(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: basil xpath convert <strategy> <value>")
	}
	loc, err := by.Parse(c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	expr, err := loc.XPathValue()
	if err != nil {
		return err
	}
	fmt.Fprintln(out(c), expr)
	return nil
}

var scriptsCommand = &cli.Command{
	Name:  "scripts",
	Usage: "Inspect the browser scripts shipped with basil",
	Subcommands: []*cli.Command{
		{
			Name:  "check",
			Usage: "Parse every script",
			Action: func(c *cli.Context) error {
				failed := jsengine.CheckAll()
				for _, s := range jsengine.Scripts() {
					status := "ok"
					if err, bad := failed[s]; bad {
						status = err.Error()
					}
					fmt.Fprintf(out(c), "%-18s %s\n", s, status)
				}
				if len(failed) > 0 {
					return fmt.Errorf("%d scripts failed to parse", len(failed))
				}
				return nil
			},
		},
		{
			Name:      "show",
			Usage:     "Print a script",
			ArgsUsage: "<name>",
			Action: func(c *cli.Context) error {
				name := jsengine.Script(c.Args().First())
				for _, s := range jsengine.Scripts() {
					if s == name {
						fmt.Fprintln(out(c), jsengine.Source(s))
						return nil
					}
				}
				return fmt.Errorf("unknown script %q", name)
			},
		},
	},
}

var reportCommand = &cli.Command{
	Name:      "report",
	Usage:     "Summarize a report directory",
	ArgsUsage: "<dir>",
	Action:    showReport,
}

func showReport(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: basil report <dir>")
	}
	idx, err := report.ReadIndex(appFs, c.Args().First())
	if err != nil {
		return err
	}

	w := out(c)
	fmt.Fprintf(w, "run %s: %s\n", idx.RunID, idx.Status)
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Name", "Worker", "Status", "Duration", "Error")
	for _, t := range idx.Tests {
		duration := "-"
		if t.Duration != nil {
			duration = fmt.Sprintf("%dms", *t.Duration)
		}
		msg := ""
		if t.Error != nil {
			msg = firstLine(t.Error.Message)
		}
		if err := table.Append(t.ID, t.Name, fmt.Sprint(t.Worker), string(t.Status), duration, msg); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	s := idx.Summary
	counts := map[string]int{"passed": s.Passed, "failed": s.Failed, "errored": s.Errored, "skipped": s.Skipped}
	keys := make([]string, 0, len(counts))
	for k, n := range counts {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d %s", counts[k], k)
	}
	fmt.Fprintf(w, "%d tests: %s\n", s.Total, strings.Join(parts, ", "))
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

