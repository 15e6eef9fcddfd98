// Package main is pkgmirror's CLI entrypoint: a single `mirror`
// sub-command that drives the Repository Manager end to end.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/packetary-go/pkgmirror/cmn/cos"
	"github.com/packetary-go/pkgmirror/cmn/nlog"
	"github.com/packetary-go/pkgmirror/internal/cliutil"
	_ "github.com/packetary-go/pkgmirror/internal/driver/deb"
	_ "github.com/packetary-go/pkgmirror/internal/driver/yum"
	"github.com/packetary-go/pkgmirror/internal/manager"
	"github.com/packetary-go/pkgmirror/internal/metrics"
	"github.com/packetary-go/pkgmirror/internal/pkgidx"
	"github.com/packetary-go/pkgmirror/internal/transport"
	"github.com/packetary-go/pkgmirror/internal/version"
)

var build string

func main() {
	app := cli.NewApp()
	app.Name = "pkgmirror"
	app.Usage = "mirror and resolve deb822/APT and yum/repomd package repositories"
	app.Version = build
	app.Commands = []cli.Command{mirrorCommand}

	if err := app.Run(os.Args); err != nil {
		nlog.Errorf("%v", err)
		os.Exit(classifyExit(err))
	}
}

// classifyExit maps an operation error to spec.md §6's exit codes:
// 0 success, 1 operation fatal, 2 malformed argument.
func classifyExit(err error) int {
	var malformed *cos.ErrMalformedURL
	if errors.As(err, &malformed) {
		return 2
	}
	return 1
}

var mirrorCommand = cli.Command{
	Name:  "mirror",
	Usage: "resolve and clone a package repository into a local destination",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "destination", Usage: "local directory to mirror into"},
		cli.StringSliceFlag{Name: "origin-url", Usage: "origin repository URL (driver-specific grammar); repeatable"},
		cli.StringFlag{Name: "origin-file", Usage: "file of newline-delimited origin URLs"},
		cli.StringFlag{Name: "type", Value: "deb", Usage: "format driver: deb|yum"},
		cli.StringFlag{Name: "arch", Value: "x86_64", Usage: "target architecture: x86_64|i386"},
		cli.StringSliceFlag{Name: "requires-url", Usage: "shield repository URL; repeatable"},
		cli.StringFlag{Name: "requires-file", Usage: "file of newline-delimited shield URLs"},
		cli.StringSliceFlag{Name: "bootstrap", Usage: `root relation "name [op version]"; repeatable`},
		cli.StringFlag{Name: "bootstrap-file", Usage: "file of newline-delimited bootstrap relations"},
		cli.BoolFlag{Name: "keep-existing", Usage: "union with whatever is already at destination instead of pruning it"},
		cli.IntFlag{Name: "threads", Value: 4, Usage: "worker pool size"},
		cli.IntFlag{Name: "connections", Value: 8, Usage: "byte transport connection pool size"},
		cli.IntFlag{Name: "retries", Value: 3, Usage: "per-file retry budget"},
		cli.IntFlag{Name: "errors-budget", Value: 0, Usage: "tolerated copy failures before the operation fails (0 = fail-fast)"},
		cli.BoolFlag{Name: "dry-run", Usage: "compute CopyStatistics from the fetched metadata without copying package files or writing to the destination"},
		cli.StringFlag{Name: "metrics-addr", Usage: "optional host:port to serve Prometheus /metrics on"},
		cli.StringFlag{Name: "http-proxy", Usage: "overrides HTTP_PROXY"},
		cli.StringFlag{Name: "https-proxy", Usage: "overrides HTTPS_PROXY"},
	},
	Action: runMirror,
}

func runMirror(c *cli.Context) error {
	req, pool, errorsBudget, metricsAddr, err := parseRequest(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSignalHandler(cancel)

	var coll *metrics.Collector
	if metricsAddr != "" {
		coll = metrics.New()
		go func() {
			if err := coll.Serve(ctx, metricsAddr); err != nil {
				nlog.Warningf("metrics server stopped: %v", err)
			}
		}()
	}

	mgr := manager.New(pool, c.Int("threads"), errorsBudget).WithMetrics(coll)

	stats, unresolved, err := mgr.CloneRepositories(ctx, req)
	for _, r := range unresolved {
		nlog.Warningf("unresolved: %s", r.String())
	}
	if err != nil {
		return err
	}

	fmt.Println(stats.String())
	fmt.Println("Operation has been completed successfully.")
	return nil
}

func parseRequest(c *cli.Context) (req manager.Request, pool *transport.Pool, errorsBudget int, metricsAddr string, err error) {
	dest := c.String("destination")
	if dest == "" {
		return req, nil, 0, "", &cos.ErrMalformedURL{Raw: "", Reason: "--destination is required"}
	}

	origin, err := gatherLines(c.StringSlice("origin-url"), c.String("origin-file"))
	if err != nil {
		return req, nil, 0, "", err
	}
	if len(origin) == 0 {
		return req, nil, 0, "", &cos.ErrMalformedURL{Raw: "", Reason: "one of --origin-url or --origin-file is required"}
	}

	driverName := c.String("type")
	arch, err := parseArch(c.String("arch"))
	if err != nil {
		return req, nil, 0, "", err
	}

	shield, err := gatherLines(c.StringSlice("requires-url"), c.String("requires-file"))
	if err != nil {
		return req, nil, 0, "", err
	}

	bootstrapLines, err := gatherLines(c.StringSlice("bootstrap"), c.String("bootstrap-file"))
	if err != nil {
		return req, nil, 0, "", err
	}
	bootstrap, err := cliutil.ParseBootstrap(bootstrapLines, versionParserFor(driverName))
	if err != nil {
		return req, nil, 0, "", err
	}

	req = manager.Request{
		DriverName:   driverName,
		Origin:       origin,
		Arch:         arch,
		Shield:       shield,
		Bootstrap:    bootstrap,
		Destination:  dest,
		KeepExisting: c.Bool("keep-existing"),
		DryRun:       c.Bool("dry-run"),
	}

	pool = transport.New(c.Int("connections"), transport.Opts{
		Retries:    c.Int("retries"),
		HTTPProxy:  firstNonEmpty(c.String("http-proxy"), os.Getenv("HTTP_PROXY")),
		HTTPSProxy: firstNonEmpty(c.String("https-proxy"), os.Getenv("HTTPS_PROXY")),
	})

	return req, pool, c.Int("errors-budget"), c.String("metrics-addr"), nil
}

func gatherLines(flagValues []string, filePath string) ([]string, error) {
	out := append([]string{}, flagValues...)
	if filePath != "" {
		lines, err := cliutil.ReadLines(filePath)
		if err != nil {
			return nil, err
		}
		out = append(out, lines...)
	}
	return out, nil
}

func parseArch(s string) (pkgidx.Arch, error) {
	switch s {
	case "x86_64":
		return pkgidx.ArchX86_64, nil
	case "i386":
		return pkgidx.ArchI386, nil
	default:
		return 0, &cos.ErrMalformedURL{Raw: s, Reason: `--arch must be "x86_64" or "i386"`}
	}
}

func versionParserFor(driverName string) func(string) version.Comparand {
	if driverName == "yum" {
		return func(s string) version.Comparand { return version.ParseRPM(s) }
	}
	return func(s string) version.Comparand { return version.ParseDebian(s) }
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func installSignalHandler(cancel context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		nlog.Warningf("received shutdown signal, draining in-flight work")
		cancel()
	}()
}
