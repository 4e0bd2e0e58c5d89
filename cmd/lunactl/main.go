// lunactl works with legacy packages and the service bus without a running
// host: it extracts and builds ipk files and routes single service calls.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgnsrekt/lunashim/internal/ipk"
	"github.com/dgnsrekt/lunashim/internal/luna"
	"github.com/spf13/pflag"
)

// usageError is reported with the command usage and exit status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }
func (usageError) ExitCode() int   { return 2 }

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return usageError{"missing command"}
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "extract":
		return runExtract(rest, stdout, stderr)
	case "pack":
		return runPack(rest, stdout, stderr)
	case "route":
		return runRoute(rest, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return usageError{fmt.Sprintf("unknown command %q", cmd)}
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: lunactl <command> [flags] [args]

Commands:
  extract <package.ipk> <dest>   unpack the data payload of a package
  pack <dir> <out.ipk>           build a package from a directory
  route <url> [params-json]      route one service call and print the response
`)
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("lunactl "+name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parse(fs *pflag.FlagSet, args []string, want int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, usageError{err.Error()}
	}
	rest := fs.Args()
	if len(rest) < want {
		return nil, usageError{fmt.Sprintf("%s: expected %d arguments, got %d", fs.Name(), want, len(rest))}
	}
	return rest, nil
}

func setupLogger(stderr io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
}

func runExtract(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("extract", stderr)
	asJSON := fs.Bool("json", false, "print the result as JSON")
	verbose := fs.BoolP("verbose", "v", false, "log extraction steps")
	rest, err := parse(fs, args, 2)
	if err != nil {
		return err
	}
	setupLogger(stderr, *verbose)

	res, err := ipk.Extract(rest[0], rest[1])
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(stdout, "extracted %s from %s into %s (%d files, %d dirs, %d skipped, %d bytes)\n",
		res.Payload, rest[0], res.Root, res.Stats.Files, res.Stats.Dirs, res.Stats.Skipped, res.Stats.Bytes)
	return nil
}

func runPack(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("pack", stderr)
	var ctl ipk.Control
	fs.StringVar(&ctl.Package, "package", "", "package name (default: directory name)")
	fs.StringVar(&ctl.Version, "version", "1.0.0", "package version")
	fs.StringVar(&ctl.Architecture, "arch", "all", "package architecture")
	fs.StringVar(&ctl.Maintainer, "maintainer", "", "maintainer field")
	fs.StringVar(&ctl.Description, "description", "", "description field")
	rest, err := parse(fs, args, 2)
	if err != nil {
		return err
	}
	setupLogger(stderr, false)

	src, out := rest[0], rest[1]
	if ctl.Package == "" {
		ctl.Package = filepath.Base(filepath.Clean(src))
	}
	if err := ipk.PackFile(src, ctl, out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "packed %s into %s\n", src, out)
	return nil
}

func runRoute(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("route", stderr)
	locale := fs.String("locale", "en_US", "reported locale")
	tz := fs.String("timezone", "", "reported IANA time zone (default: local)")
	hour24 := fs.Bool("24h", false, "report the HH24 time format")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	setupLogger(stderr, false)

	loc := time.Local
	if *tz != "" {
		if loc, err = time.LoadLocation(*tz); err != nil {
			return usageError{fmt.Sprintf("invalid timezone %q: %v", *tz, err)}
		}
	}
	l := luna.ParseLocale(*locale)
	l.Use24Hour = *hour24

	router := luna.NewRouter(luna.DefaultServices(luna.Env{
		Clock:   luna.SystemClock{Location: loc},
		Locale:  l,
		Opener:  printOpener{w: stdout},
		Network: luna.NewHostNetworkProbe(),
	})...)

	params := "{}"
	if len(rest) > 1 {
		params = strings.Join(rest[1:], " ")
	}
	fmt.Fprintln(stdout, router.Route(rest[0], params))
	return nil
}

// printOpener reports open requests instead of acting on them.
type printOpener struct{ w io.Writer }

func (p printOpener) Open(kind luna.OpenKind, target string) error {
	fmt.Fprintf(p.w, "# open %s %s\n", kind, target)
	return nil
}
