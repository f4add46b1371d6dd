package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/example/swimlens/internal/media"
)

type probeCmd struct {
	*root
	fs     *flag.FlagSet
	atoms  bool
	source string
}

func (c *probeCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseProbeCmd(args []string, r *root) (*probeCmd, error) {
	r = r.subcommand("probe")
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	c := &probeCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	fs.BoolVar(&c.atoms, "atoms-only", false, "print only the MP4 atom tree without decoding")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, &UsageError{of: c}
	}
	c.source = fs.Arg(0)
	return c, nil
}

func (c *probeCmd) Run() error {
	src, err := media.ParseSource(c.source)
	if err != nil {
		return err
	}
	if !c.atoms {
		v, err := openClip(src, c.log)
		if err != nil {
			return fmt.Errorf("open %s: %w", src, err)
		}
		size := v.Size()
		fmt.Fprintf(c.stdout, "source:   %s (%s)\n", src, src.Kind)
		fmt.Fprintf(c.stdout, "size:     %.0fx%.0f\n", size.W, size.H)
		if fr, ok := v.(interface{ FPS() float64 }); ok {
			fmt.Fprintf(c.stdout, "fps:      %.2f\n", fr.FPS())
		}
		if src.Live() {
			fmt.Fprintln(c.stdout, "duration: live")
		} else {
			fmt.Fprintf(c.stdout, "duration: %s\n", v.Duration())
		}
		if err := v.Close(); err != nil {
			c.log.Warn().Err(err).Msg("close video")
		}
	}
	if src.Kind != media.KindFile {
		return nil
	}
	f, err := os.Open(src.URL)
	if err != nil {
		return err
	}
	defer f.Close()
	atoms, err := media.ProbeMP4(f)
	if err != nil {
		if errors.Is(err, media.ErrNotMP4) {
			c.log.Debug().Err(err).Msg("no atom tree")
			return nil
		}
		return fmt.Errorf("probe %s: %w", src.URL, err)
	}
	fmt.Fprintln(c.stdout, "atoms:")
	printAtoms(c.stdout, atoms, 1)
	return nil
}

func printAtoms(w io.Writer, atoms []media.Atom, depth int) {
	for _, a := range atoms {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), a)
		printAtoms(w, a.Children, depth+1)
	}
}
