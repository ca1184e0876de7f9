// Package conf turns the command line, the environment and an optional .env
// file into the options both simulator processes start from.
package conf

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/svanichkin/pixelsim/bus"
)

// AppMode selects which half of the simulator the process runs.
type AppMode int

const (
	ModeUnset AppMode = iota
	ModeRender
	ModeRun
)

func (m AppMode) String() string {
	switch m {
	case ModeRender:
		return "render"
	case ModeRun:
		return "run"
	default:
		return "unset"
	}
}

// DefaultScript runs when "run" is given no script name.
const DefaultScript = "sine"

// ErrHelp is returned by ParseCLI after --help; the caller prints Usage.
var ErrHelp = pflag.ErrHelp

// AppOptions aggregates all CLI flags and configuration options required by the application.
type AppOptions struct {
	Mode        AppMode
	Script      string
	Renderer    string
	Verbose     bool
	LogPath     string
	EnvFile     string
	ShowVersion bool
	ListScripts bool
	Addrs       bus.Addrs
}

func newFlagSet(opts *AppOptions, addrFlags map[string]*string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("pixelsim", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false
	fs.StringVarP(&opts.Renderer, "renderer", "r", "ansi", "renderer for render mode: ansi or screen")
	fs.StringVarP(&opts.Script, "script", "s", "", "script to run in run mode (default "+DefaultScript+")")
	fs.BoolVar(&opts.ListScripts, "list", false, "list the bundled scripts and exit")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")
	fs.StringVar(&opts.LogPath, "log", "", "log file (default $TMPDIR/pixelsim-<mode>.log)")
	fs.StringVar(&opts.EnvFile, "env-file", "", "read PIXELSIM_*_ADDR variables from this file (default .env if present)")
	fs.BoolVar(&opts.ShowVersion, "version", false, "print version and exit")
	for _, link := range bus.Links {
		addrFlags[link] = fs.String(link+"-addr", "", fmt.Sprintf("address of the %s link (env %s)", link, EnvVar(link)))
	}
	return fs
}

// Usage writes the command synopsis and flag help to w.
func Usage(w io.Writer) {
	fs := newFlagSet(&AppOptions{}, map[string]*string{})
	fmt.Fprintf(w, "usage:\n  pixelsim render [flags]\n  pixelsim run [flags] [script]\n\nflags:\n%s", fs.FlagUsages())
}

// ParseCLI parses args (without the program name) and resolves the link
// addresses. It performs only argument parsing and normalization.
func ParseCLI(args []string) (*AppOptions, error) {
	opts := &AppOptions{}
	addrFlags := map[string]*string{}
	fs := newFlagSet(opts, addrFlags)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.ShowVersion || opts.ListScripts {
		return opts, nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return nil, errors.New("missing mode: want render or run")
	}
	switch strings.ToLower(rest[0]) {
	case "render":
		opts.Mode = ModeRender
		if len(rest) > 1 {
			return nil, fmt.Errorf("unexpected extra positional arguments: %v", rest[1:])
		}
	case "run":
		opts.Mode = ModeRun
		if len(rest) > 2 {
			return nil, fmt.Errorf("unexpected extra positional arguments: %v", rest[2:])
		}
		if len(rest) == 2 {
			if opts.Script != "" && opts.Script != rest[1] {
				return nil, fmt.Errorf("script given twice: %q and %q", opts.Script, rest[1])
			}
			opts.Script = rest[1]
		}
		if opts.Script == "" {
			opts.Script = DefaultScript
		}
	default:
		return nil, fmt.Errorf("unknown mode %q: want render or run", rest[0])
	}

	overrides := map[string]string{}
	for link, v := range addrFlags {
		if s := strings.TrimSpace(*v); s != "" {
			overrides[link] = s
		}
	}
	addrs, err := LoadAddrs(opts.EnvFile, overrides)
	if err != nil {
		return nil, err
	}
	opts.Addrs = addrs
	return opts, nil
}
