// Command tobe captures web pages and formats JSON from the command line,
// or serves the same operations over HTTP and MCP.
//
// Usage:
//
//	tobe fullpage https://example.com --out page.png
//	tobe selection https://example.com --x 0 --y 0 --width 400 --height 300
//	tobe json format data.json
//	tobe timestamp 1700000000
//	tobe --config tobe.yaml serve
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hazyhaar/tobe/config"
	"github.com/hazyhaar/tobe/export"
	"github.com/hazyhaar/tobe/extension"
	"github.com/hazyhaar/tobe/horosafe"
	"github.com/hazyhaar/tobe/screenshot"
	"github.com/hazyhaar/tobe/store"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, message(err))
		os.Exit(1)
	}
}

// message is the user-facing text of a failure.
func message(err error) string {
	if code := screenshot.Code(err); code != screenshot.CodeInternal {
		return screenshot.UserMessage(err)
	}
	return err.Error()
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "tobe",
		Usage:   "page screenshots and JSON viewer",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to tobe.yaml"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "log level: debug, info, warn, error"},
			&cli.StringFlag{Name: "store", Usage: "SQLite database path (overrides store.path)"},
			&cli.StringFlag{Name: "remote", Usage: "WebSocket URL of a running Chrome (overrides browser.remote)"},
		},
		Commands: []*cli.Command{
			captureCommand("fullpage", "capture a whole page by scrolling and stitching"),
			captureCommand("visible", "capture the first viewport of a page"),
			selectionCommand(),
			jsonCommand(),
			timestampCommand(),
			serveCommand(),
		},
	}
}

func newLogger(c *cli.Context) *slog.Logger {
	var level slog.Level
	switch c.String("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if v := c.String("store"); v != "" {
		cfg.Store.Path = v
	}
	if v := c.String("remote"); v != "" {
		cfg.Browser.Remote = v
	}
	return cfg, nil
}

func openExtension(c *cli.Context) (*extension.Extension, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	e, err := extension.New(cfg, newLogger(c))
	if err != nil {
		return nil, nil, err
	}
	return e, cfg, nil
}

var outputFlags = []cli.Flag{
	&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default: generated name under export.dir)"},
	&cli.BoolFlag{Name: "pdf", Usage: "write a PDF instead of a PNG"},
}

func captureCommand(kind, usage string) *cli.Command {
	return &cli.Command{
		Name:      kind,
		Usage:     usage,
		ArgsUsage: "URL",
		Flags:     outputFlags,
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one URL", 2)
			}
			e, _, err := openExtension(c)
			if err != nil {
				return err
			}
			defer e.Close()

			var shot *store.Screenshot
			if kind == store.KindFullPage {
				shot, err = e.CaptureFullPage(c.Context, c.Args().First())
			} else {
				shot, err = e.CaptureVisible(c.Context, c.Args().First())
			}
			if err != nil {
				return err
			}
			return writeShot(c, e, shot)
		},
	}
}

func selectionCommand() *cli.Command {
	return &cli.Command{
		Name:      "selection",
		Usage:     "capture a rectangle of the first viewport, in CSS pixels",
		ArgsUsage: "URL",
		Flags: append([]cli.Flag{
			&cli.Float64Flag{Name: "x"},
			&cli.Float64Flag{Name: "y"},
			&cli.Float64Flag{Name: "width", Required: true},
			&cli.Float64Flag{Name: "height", Required: true},
		}, outputFlags...),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one URL", 2)
			}
			e, _, err := openExtension(c)
			if err != nil {
				return err
			}
			defer e.Close()

			shot, err := e.CaptureSelection(c.Context, c.Args().First(), screenshot.Rect{
				X: c.Float64("x"), Y: c.Float64("y"), Width: c.Float64("width"), Height: c.Float64("height"),
			})
			if err != nil {
				return err
			}
			return writeShot(c, e, shot)
		},
	}
}

func writeShot(c *cli.Context, e *extension.Extension, shot *store.Screenshot) error {
	out := c.String("out")
	asPDF := c.Bool("pdf")
	if out == "" {
		path, err := e.Download(shot, asPDF)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	}

	data := shot.PNG
	if asPDF {
		var err error
		if data, err = export.PDF(shot.PNG); err != nil {
			return err
		}
	}
	if out == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("%s %dx%d segments=%d\n", out, shot.Width, shot.Height, shot.Segments)
	return nil
}

func readInput(c *cli.Context) (string, error) {
	name := c.Args().First()
	if name == "" || name == "-" {
		data, err := horosafe.LimitedReadAll(os.Stdin, horosafe.MaxRequestBody)
		return string(data), err
	}
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := horosafe.LimitedReadAll(f, horosafe.MaxRequestBody)
	return string(data), err
}

func jsonCommand() *cli.Command {
	return &cli.Command{
		Name:  "json",
		Usage: "format or render JSON",
		Subcommands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "pretty-print JSON keeping key order",
				ArgsUsage: "FILE|-",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "indent", Value: "  ", Usage: `indent string, "-" for compact`},
				},
				Action: func(c *cli.Context) error {
					text, err := readInput(c)
					if err != nil {
						return err
					}
					e, _, err := openExtension(c)
					if err != nil {
						return err
					}
					defer e.Close()
					out, err := e.FormatJSON(text, c.String("indent"))
					if err != nil {
						return err
					}
					fmt.Println(out)
					return nil
				},
			},
			{
				Name:      "render",
				Usage:     "render JSON as the tree viewer's HTML",
				ArgsUsage: "FILE|-",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "collapse", Usage: "collapse every node"},
					&cli.BoolFlag{Name: "restore", Usage: "apply the saved expand/collapse state"},
				},
				Action: func(c *cli.Context) error {
					text, err := readInput(c)
					if err != nil {
						return err
					}
					e, _, err := openExtension(c)
					if err != nil {
						return err
					}
					defer e.Close()
					req := extension.RenderRequest{Text: text, Restore: c.Bool("restore")}
					if c.Bool("collapse") {
						req.Action = "collapse_all"
					}
					out, err := e.RenderJSON(c.Context, req)
					if err != nil {
						return err
					}
					_, err = io.WriteString(os.Stdout, out.HTML+"\n")
					return err
				},
			},
		},
	}
}

func timestampCommand() *cli.Command {
	return &cli.Command{
		Name:      "timestamp",
		Usage:     "convert a Unix timestamp to a date, or a date to a Unix timestamp",
		ArgsUsage: "VALUE",
		Action: func(c *cli.Context) error {
			e, _, err := openExtension(c)
			if err != nil {
				return err
			}
			defer e.Close()
			out, err := e.Timestamp(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			switch {
			case out.Conversion != nil:
				fmt.Printf("%s (%s)\n", out.Conversion.String(), out.Conversion.Unit)
			case out.Epoch != nil:
				fmt.Println(out.Epoch.String())
			default:
				fmt.Printf("%s\n%s\n", out.Now.Display, out.Now.Epoch.String())
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the HTTP API and MCP tools",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (overrides server.addr)"},
		},
		Action: func(c *cli.Context) error {
			e, cfg, err := openExtension(c)
			if err != nil {
				return err
			}
			defer e.Close()
			logger := slog.Default()

			if err := e.Start(c.Context); err != nil {
				return err
			}

			addr := cfg.Server.Addr
			if v := c.String("addr"); v != "" {
				addr = v
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           e.Handler(e.NewMCPServer(version)),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("tobe: listening", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-c.Context.Done():
			}

			logger.Info("tobe: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
