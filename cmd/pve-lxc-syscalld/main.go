package main

import (
	"fmt"
	"log"
	"os"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/proxmox/pve-lxc-syscalld/internal/daemon"
	"github.com/proxmox/pve-lxc-syscalld/internal/forkexec"
)

const usage = `pve-lxc-syscalld <socket-path>

pve-lxc-syscalld is a privileged daemon that services seccomp
user-notification requests forwarded from LXC's container-monitor over
a SOCK_SEQPACKET unix socket, reproducing the calling container
process's permission context before performing the syscall on its
behalf.
`

func main() {
	// A re-exec'd copy of this binary, asked to perform exactly one
	// syscall on a captured permission snapshot and then exit, takes
	// this path instead of the cli app below. forkexec's own init()
	// already pinned this goroutine to its OS thread before main ever
	// runs, so nothing else may execute first.
	if forkexec.IsHelperArg(os.Args) {
		forkexec.HelperMain()
		return
	}

	app := cli.NewApp()
	app.Name = "pve-lxc-syscalld"
	app.Usage = usage
	app.ArgsUsage = "<socket-path>"

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "system",
			Usage: "notify systemd readiness via sd_notify once listening",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "log file path or empty string for stderr output",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "log level (debug, info, warning, error, fatal)",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "log format; must be json or text",
		},
		cli.BoolFlag{
			Name:   "cpu-profiling",
			Usage:  "enable cpu-profiling data collection",
			Hidden: true,
		},
		cli.BoolFlag{
			Name:   "memory-profiling",
			Usage:  "enable memory-profiling data collection",
			Hidden: true,
		},
	}

	app.Before = func(ctx *cli.Context) error {
		if path := ctx.String("log"); path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0666)
			if err != nil {
				return fmt.Errorf("opening log file %s: %w", path, err)
			}
			logrus.SetOutput(f)
			log.SetOutput(f)
		} else {
			logrus.SetOutput(os.Stderr)
			log.SetOutput(os.Stderr)
		}

		if ctx.String("log-format") == "json" {
			logrus.SetFormatter(&logrus.JSONFormatter{
				TimestampFormat: "2006-01-02 15:04:05",
			})
		} else {
			logrus.SetFormatter(&logrus.TextFormatter{
				TimestampFormat: "2006-01-02 15:04:05",
				FullTimestamp:   true,
			})
		}

		switch ctx.String("log-level") {
		case "debug":
			logrus.SetLevel(logrus.DebugLevel)
		case "info", "":
			logrus.SetLevel(logrus.InfoLevel)
		case "warning":
			logrus.SetLevel(logrus.WarnLevel)
		case "error":
			logrus.SetLevel(logrus.ErrorLevel)
		case "fatal":
			logrus.SetLevel(logrus.FatalLevel)
		default:
			return fmt.Errorf("log-level %q not recognized", ctx.String("log-level"))
		}
		return nil
	}

	app.Action = func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			return fmt.Errorf("missing path")
		}
		if ctx.NArg() > 1 {
			cli.ShowAppHelp(ctx)
			return fmt.Errorf("unexpected extra arguments")
		}

		prof, err := runProfiler(ctx)
		if err != nil {
			return err
		}
		if prof != nil {
			defer prof.Stop()
		}

		cfg := daemon.Config{
			SocketPath: ctx.Args().Get(0),
			System:     ctx.Bool("system"),
		}
		return daemon.Run(cfg)
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func runProfiler(ctx *cli.Context) (interface{ Stop() }, error) {
	cpuOn := ctx.Bool("cpu-profiling")
	memOn := ctx.Bool("memory-profiling")
	if cpuOn && memOn {
		return nil, fmt.Errorf("unsupported parameter combination: cpu and memory profiling")
	}
	if !cpuOn && !memOn {
		return nil, nil
	}
	if cpuOn {
		return profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook), nil
	}
	return profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook), nil
}
