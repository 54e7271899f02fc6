package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-medscan-client/internal/config"
	"github.com/jrsteele09/go-medscan-client/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Err(err).Msg("medscan failed")
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	global := flag.NewFlagSet("medscan", flag.ContinueOnError)
	configPath := global.String("config", os.Getenv("MEDSCAN_CONFIG"), "optional YAML config file")
	quiet := global.Bool("q", false, "do not print the banner")
	global.Usage = func() { usage(global) }
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	c, err := config.NewFromFile(*configPath)
	if err != nil {
		return err
	}
	logging.SetGlobal(logging.New(c.GetEnv(), c.GetLogLevel(), os.Stderr))

	rest := global.Args()
	if len(rest) == 0 {
		usage(global)
		return errors.New("no command given")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		usage(global)
		return fmt.Errorf("unknown command %q", rest[0])
	}

	if !*quiet {
		displayAppname(c.GetAppName())
	}

	a, err := newApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd.run(ctx, a, rest[1:])
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintf(out, "usage: medscan [-config file] [-q] <command> [args]\n\nflags:\n")
	fs.PrintDefaults()
	fmt.Fprintf(out, "\ncommands:\n")
	for _, name := range commandNames() {
		fmt.Fprintf(out, "  %-15s %s\n", name, commands[name].help)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
