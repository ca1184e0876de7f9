package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/svanichkin/pixelsim/bus"
	"github.com/svanichkin/pixelsim/conf"
	"github.com/svanichkin/pixelsim/logs"
	"github.com/svanichkin/pixelsim/network"
	"github.com/svanichkin/pixelsim/relay"
	"github.com/svanichkin/pixelsim/sim"
	"github.com/svanichkin/pixelsim/ui"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "[pixelsim] %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := conf.ParseCLI(args)
	if errors.Is(err, conf.ErrHelp) {
		conf.Usage(os.Stdout)
		return nil
	}
	if err != nil {
		conf.Usage(os.Stderr)
		return err
	}
	if opts.ShowVersion {
		fmt.Printf("pixelsim %s\n", appVersion())
		return nil
	}
	if opts.ListScripts {
		for _, name := range sim.Names() {
			fmt.Println(name)
		}
		return nil
	}

	logs.SetVerbose(opts.Verbose)
	logPath := opts.LogPath
	if logPath == "" {
		logPath = filepath.Join(os.TempDir(), "pixelsim-"+opts.Mode.String()+".log")
	}
	_, closeLog, logErr := logs.InitSink(logPath)
	if logErr == nil {
		defer closeLog()
		fmt.Fprintf(os.Stderr, "[pixelsim] logs: %s\n", logPath)
	} else {
		fmt.Fprintf(os.Stderr, "[pixelsim] log file disabled (%v)\n", logErr)
		if opts.Mode == conf.ModeRender {
			// the renderer owns the terminal
			log.SetOutput(io.Discard)
		}
	}
	log.Printf("[main] pixelsim %s %s, addrs display=%s control=%s input=%s output=%s",
		appVersion(), opts.Mode, opts.Addrs.Display, opts.Addrs.Control, opts.Addrs.Input, opts.Addrs.Output)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	t := network.NewTransport()
	switch opts.Mode {
	case conf.ModeRender:
		return runRenderer(ctx, opts, t)
	case conf.ModeRun:
		return runDevice(ctx, opts, t)
	default:
		return fmt.Errorf("unsupported mode %s", opts.Mode)
	}
}

// establish brings every link up so an occupied bind address fails before
// anything else starts.
func establish(b *bus.Bus) error {
	for _, link := range bus.Links {
		if err := b.Establish(link); err != nil {
			return fmt.Errorf("%s link: %w", link, err)
		}
	}
	return nil
}

func runRenderer(ctx context.Context, opts *conf.AppOptions, t network.Transport) error {
	b := bus.New(bus.SideRenderer, opts.Addrs, t)
	defer b.Close()
	if err := establish(b); err != nil {
		return err
	}
	r, err := ui.NewRenderer(opts.Renderer)
	if err != nil {
		return err
	}
	log.Printf("[main] renderer %s on bus %s", opts.Renderer, b.ID())
	return ui.NewLoop(r, b, ui.Options{}).Run(ctx)
}

func runDevice(ctx context.Context, opts *conf.AppOptions, t network.Transport) error {
	script, err := sim.Lookup(opts.Script)
	if err != nil {
		return err
	}
	b := bus.New(bus.SideDevice, opts.Addrs, t)
	defer b.Close()
	if err := establish(b); err != nil {
		return err
	}

	scope, err := relay.Activate(b)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := scope.Release(); rerr != nil {
			log.Printf("[main] output relay: %v", rerr)
		}
	}()

	s := sim.New(b)
	s.Start(ctx)
	log.Printf("[main] running %s on bus %s", opts.Script, b.ID())
	runErr := sim.Run(s, script)
	if s.StoppedByPeer() {
		log.Printf("[main] renderer stopped the run")
	}
	return errors.Join(runErr, s.Stop())
}

func appVersion() string {
	v := strings.TrimSpace(version)
	if v != "" && v != "dev" {
		return v
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if ver := bi.Main.Version; ver != "" && ver != "(devel)" {
		return ver
	}
	var revision, modified string
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		}
	}
	if revision == "" {
		return "dev"
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	if modified == "true" {
		revision += "+dirty"
	}
	return revision
}
