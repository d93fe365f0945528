// Package daemon wires together the listener, the seccomp-sizes check,
// and the per-connection handler loop into the running program, plus
// systemd readiness notification and signal-driven shutdown.
package daemon

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/sirupsen/logrus"

	"github.com/proxmox/pve-lxc-syscalld/internal/conn"
	"github.com/proxmox/pve-lxc-syscalld/internal/seccompwire"
	"github.com/proxmox/pve-lxc-syscalld/internal/syscalltable"
)

// Config gathers the daemon's runtime parameters, assembled by the CLI
// layer from flags and handed down by value.
type Config struct {
	SocketPath string
	System     bool
}

// Run loads and validates the kernel's seccomp-notify sizes, binds the
// listener socket, and services connections until a termination signal
// arrives. It returns only on error; on a termination signal the process
// exits from exitHandler instead.
func Run(cfg Config) error {
	if err := syscalltable.VerifyNative(); err != nil {
		logrus.Warnf("syscall table sanity check failed: %v", err)
	}

	sizes, err := seccompwire.LoadNotifSizes()
	if err != nil {
		return fmt.Errorf("daemon: loading seccomp notif sizes: %w", err)
	}

	l, err := listenSeqpacket(cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("daemon: binding listener: %w", err)
	}
	defer l.Close()

	exitChan := make(chan os.Signal, 1)
	signal.Notify(exitChan,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go exitHandler(exitChan, cfg)

	if cfg.System {
		if ok, err := systemd.SdNotify(false, systemd.SdNotifyReady); err != nil {
			return fmt.Errorf("daemon: sd_notify ready: %w", err)
		} else if !ok {
			logrus.Debug("daemon: sd_notify not supported by this invocation (not run under systemd)")
		}
	}

	logrus.Infof("listening on %s", cfg.SocketPath)

	for {
		fd, err := l.Accept()
		if err != nil {
			return fmt.Errorf("daemon: accept: %w", err)
		}
		go conn.Handle(fd, sizes)
	}
}

func exitHandler(exitChan chan os.Signal, cfg Config) {
	s := <-exitChan
	logrus.Warnf("caught signal %s, shutting down", s)

	if cfg.System {
		systemd.SdNotify(false, systemd.SdNotifyStopping)
	}

	if s == syscall.SIGQUIT {
		stacktrace := make([]byte, 32768)
		n := runtime.Stack(stacktrace, true)
		logrus.Warnf("\n\n%s\n", stacktrace[:n])
	}

	os.Exit(0)
}
