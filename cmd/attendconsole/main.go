package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/faceattend/attendance-console/internal/activity"
	"github.com/faceattend/attendance-console/internal/api"
	"github.com/faceattend/attendance-console/internal/backend"
	"github.com/faceattend/attendance-console/internal/chime"
	"github.com/faceattend/attendance-console/internal/config"
	"github.com/faceattend/attendance-console/internal/dashboard"
	"github.com/faceattend/attendance-console/internal/enroll"
	"github.com/faceattend/attendance-console/internal/feed"
	"github.com/faceattend/attendance-console/internal/logging"
	"github.com/faceattend/attendance-console/internal/login"
)

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && (args[0] == "serve" || args[0] == "enroll" || args[0] == "config") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "enroll":
		err = runEnroll(args)
	case "config":
		err = runConfig(args)
	default:
		err = runServe(args)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, fellBack, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if fellBack {
		log.Println("Warning: No config file found")
		log.Println("Using default configuration")
	}
	return cfg, nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println("Face Attendance Console")
	fmt.Println("=======================")

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logBuf := activity.NewLogBuffer(500)
	lg, err := logging.Init(cfg.Log.Level, cfg.Log.Env, logBuf.Core(zapcore.InfoLevel))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer lg.Closer()

	fmt.Printf("Backend: %s\n", cfg.Backend.BaseURL)
	fmt.Printf("Console: http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)

	ctrl, err := login.NewController(login.DefaultAccounts(), cfg.Login.RedirectDelay, lg.Base)
	if err != nil {
		return err
	}

	client := backend.New(cfg.Backend, lg.Base)
	notices := activity.NewNoticeBuffer(20, cfg.Dashboard.NoticeTTL)
	dash := dashboard.New(client, notices, dashboard.Options{
		Dedupe: cfg.Dashboard.Dedupe,
		Player: chime.New(cfg.Dashboard.Sound),
	}, lg.Base)
	wizard := enroll.NewWizard(client, cfg.Enroll.CompletionPromptDelay, lg.Base)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var feedClient *feed.Client
	if cfg.Feed.Enabled {
		url, err := cfg.FeedURL()
		if err != nil {
			return err
		}
		feedClient = feed.NewClient(url, cfg.Feed, dash, lg.Base)
	}

	deps := api.Deps{
		Config:    cfg,
		Login:     ctrl,
		Dashboard: dash,
		Wizard:    wizard,
		Notices:   notices,
		Logs:      logBuf,
		LogLevel:  lg.Level,
		Log:       lg.Base,
	}
	if feedClient != nil {
		deps.Feed = feedClient
	}
	server := api.NewServer(deps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// a failed load is reported as a notice; the feed still runs
		_ = dash.Bootstrap(ctx)
		return nil
	})
	if feedClient != nil {
		g.Go(func() error { return feedClient.Run(ctx) })
	}
	g.Go(func() error { return server.Start(ctx) })

	lg.Base.Info("console starting", zap.Bool("feed", feedClient != nil))
	fmt.Println("Press Ctrl+C to stop")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	lg.Base.Info("console stopped")
	return nil
}

// runEnroll pushes a spreadsheet and an image folder through the pipeline
// without the web UI and prints the processing log.
func runEnroll(args []string) error {
	fs := flag.NewFlagSet("enroll", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	sheet := fs.String("spreadsheet", "", "student spreadsheet (.xlsx or .xls)")
	images := fs.String("images", "", "folder with one sub-folder of photos per student")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sheet == "" || *images == "" {
		fs.Usage()
		return enroll.ErrNotReady
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	lg, err := logging.Init(cfg.Log.Level, cfg.Log.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer lg.Closer()

	wizard := enroll.NewWizard(backend.New(cfg.Backend, lg.Base), 0, lg.Base)

	f, err := enroll.LoadFile(*sheet)
	if err != nil {
		return err
	}
	if err := wizard.SelectSpreadsheet(f); err != nil {
		return err
	}
	files, err := enroll.LoadDir(*images)
	if err != nil {
		return err
	}
	if err := wizard.SelectImages(files); err != nil {
		return err
	}
	fmt.Printf("%s (%s), %s\n", f.Name, enroll.FormatFileSize(f.Size), enroll.Summarize(files))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := wizard.Submit(ctx)
	for _, e := range wizard.Snapshot().Log {
		fmt.Println(e.String())
	}
	return runErr
}

// runConfig writes the effective configuration (file, .env and ATTEND_*
// overrides applied) so it can be edited and passed back with -config.
func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	out := fs.String("o", "config.yaml", "where to write the configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Save(*out); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", *out)
	return nil
}
