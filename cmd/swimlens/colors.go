package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/example/swimlens/internal/tools"
)

type colorsCmd struct {
	*root
	fs *flag.FlagSet
}

func (c *colorsCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseColorsCmd(args []string, r *root) (*colorsCmd, error) {
	r = r.subcommand("colors")
	fs := flag.NewFlagSet("colors", flag.ExitOnError)
	cmd := &colorsCmd{root: r, fs: fs}
	fs.Usage = usageFunc(cmd)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, &UsageError{of: cmd}
	}
	return cmd, nil
}

func (c *colorsCmd) Run() error {
	palette := tools.Palette()
	if len(palette) == 0 {
		fmt.Fprintln(c.stdout, "no colors available")
		return nil
	}
	current := c.config.Tools.Color
	fmt.Fprintln(c.stdout, "available palette colors (* marks the drawing color):")
	for idx, entry := range palette {
		marker := " "
		if entry.Color == current {
			marker = "*"
		}
		hex := strings.ToUpper(tools.HexColor(entry.Color))
		block := fmt.Sprintf("\x1b[48;2;%d;%d;%dm  \x1b[0m", entry.Color.R, entry.Color.G, entry.Color.B)
		fmt.Fprintf(c.stdout, "%s %2d: %-12s %s %s\n", marker, idx, entry.Name, hex, block)
	}
	return nil
}
