package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/basil/pkg/basil"
	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
)

var urlFlag = &cli.StringFlag{
	Name:    "url",
	Aliases: []string{"u"},
	Usage:   "Open this page first",
}

var locateCommand = &cli.Command{
	Name:      "locate",
	Usage:     "Resolve a locator and show what basil sees",
	ArgsUsage: "<strategy> <value>",
	Description: `Strategies: id, name, tag, xpath, class, css, link, partiallink.

Prints the number of matches, then the generated XPath, text and visibility
of the first match.`,
	Flags:  []cli.Flag{urlFlag},
	Action: locate,
}

var screenshotCommand = &cli.Command{
	Name:  "screenshot",
	Usage: "Save a PNG screenshot of the page",
	Flags: []cli.Flag{
		urlFlag,
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "screenshot.png", Usage: "Output file"},
	},
	Action: screenshot,
}

var sourceCommand = &cli.Command{
	Name:   "source",
	Usage:  "Print the page source",
	Flags:  []cli.Flag{urlFlag},
	Action: source,
}

func locate(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: basil locate <strategy> <value>")
	}
	loc, err := by.Parse(c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}

	return withDriver(c, c.String("url"), func(d core.WebDriver) error {
		w := out(c)
		root := basil.NewDriverContext(d)
		all, err := root.FindElements(loc)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "locator:   %s\n", loc)
		fmt.Fprintf(w, "matches:   %d\n", len(all))
		if len(all) == 0 {
			return core.NoSuchElement("Unable to locate element: %s", loc)
		}

		el := basil.New(root, loc)
		if err := el.Resolve(); err != nil {
			return err
		}
		gen, err := el.GeneratedLocator()
		if err != nil {
			return err
		}
		text, err := el.Text()
		if err != nil {
			return err
		}
		displayed, err := el.IsDisplayed()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "xpath:     %s\n", gen.Value)
		fmt.Fprintf(w, "text:      %q\n", text)
		fmt.Fprintf(w, "displayed: %t\n", displayed)
		return nil
	})
}

func screenshot(c *cli.Context) error {
	return withDriver(c, c.String("url"), func(d core.WebDriver) error {
		data, err := d.Screenshot()
		if err != nil {
			return err
		}
		path := c.String("output")
		if err := afero.WriteFile(appFs, path, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out(c), "saved %s (%d bytes)\n", path, len(data))
		return nil
	})
}

func source(c *cli.Context) error {
	return withDriver(c, c.String("url"), func(d core.WebDriver) error {
		html, err := d.PageSource()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out(c), html)
		return err
	})
}
