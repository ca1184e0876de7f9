package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/svanichkin/pixelsim/bus"
	"github.com/svanichkin/pixelsim/network"
)

// DefaultEnvFile is read when present and no --env-file was given.
const DefaultEnvFile = ".env"

// EnvVar returns the environment variable naming the address of link.
func EnvVar(link string) string {
	return "PIXELSIM_" + strings.ToUpper(link) + "_ADDR"
}

// DefaultAddr is the address link uses when nothing overrides it.
func DefaultAddr(link string) string {
	return "unix:///tmp/pixelsim-" + link + ".sock"
}

// LoadAddrs resolves one address per link. Later sources win: built-in
// defaults, then envFile (or .env when envFile is empty and the file exists),
// then the process environment, then flags keyed by link name.
func LoadAddrs(envFile string, flags map[string]string) (bus.Addrs, error) {
	fileVars, err := readEnvFile(envFile)
	if err != nil {
		return bus.Addrs{}, err
	}

	var addrs bus.Addrs
	seen := make(map[string]string, len(bus.Links))
	for _, link := range bus.Links {
		raw, source := DefaultAddr(link), "default"
		if v, ok := fileVars[EnvVar(link)]; ok && strings.TrimSpace(v) != "" {
			raw, source = v, "env file"
		}
		if v, ok := os.LookupEnv(EnvVar(link)); ok && strings.TrimSpace(v) != "" {
			raw, source = v, EnvVar(link)
		}
		if v, ok := flags[link]; ok && strings.TrimSpace(v) != "" {
			raw, source = v, "--"+link+"-addr"
		}
		addr, err := network.ParseAddress(raw)
		if err != nil {
			return bus.Addrs{}, fmt.Errorf("%s link address from %s: %w", link, source, err)
		}
		if other, dup := seen[addr.String()]; dup {
			return bus.Addrs{}, fmt.Errorf("%s and %s links share address %s", other, link, addr)
		}
		seen[addr.String()] = link
		setAddr(&addrs, link, addr)
	}
	return addrs, nil
}

func setAddr(a *bus.Addrs, link string, addr network.Address) {
	switch link {
	case bus.LinkDisplay:
		a.Display = addr
	case bus.LinkControl:
		a.Control = addr
	case bus.LinkInput:
		a.Input = addr
	case bus.LinkOutput:
		a.Output = addr
	}
}

func readEnvFile(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("env file %s: %w", path, err)
	}
	return vars, nil
}
