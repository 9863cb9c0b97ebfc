// Command rollcalld runs the rollcall scan daemon in the foreground, printing
// every status update to stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"rollcall/internal/config"
	"rollcall/internal/daemonrun"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("rollcalld", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "Configuration file path")
	socketPath := flags.String("socket", "", "IPC socket path (defaults to <log_dir>/rollcall.sock)")
	logLevel := flags.String("log-level", "", "Override logging.level")
	quiet := flags.BoolP("quiet", "q", false, "Do not print status updates to stdout")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel:   *logLevel,
		Console:    !*quiet,
		SocketPath: *socketPath,
	})
}
