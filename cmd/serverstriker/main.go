// ServerStriker is a host-resident monitoring agent: it samples system
// health on independent schedules and posts webhook notifications when
// thresholds are crossed or clear again.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mitinsharma/serverstriker/internal/agent"
	"github.com/mitinsharma/serverstriker/internal/alert"
	"github.com/mitinsharma/serverstriker/internal/api"
	"github.com/mitinsharma/serverstriker/internal/config"
	"github.com/mitinsharma/serverstriker/internal/metrics"
	"github.com/mitinsharma/serverstriker/internal/notify"
	"github.com/mitinsharma/serverstriker/internal/utils"
	"github.com/mitinsharma/serverstriker/internal/version"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "print version")
		runInit     = flag.Bool("init", false, "initialize config")
		setWebhook  = flag.Bool("setwebhook", false, "set or update webhook URL")
		addService  = flag.Bool("addservice", false, "add a service to monitor")
		showConfig  = flag.Bool("config", false, "show current config (safe output)")
		showStatus  = flag.Bool("status", false, "show systemd service status")
		runDaemon   = flag.Bool("run", false, "run the monitoring daemon")
		configPath  = flag.String("c", "", "path to config file")
	)
	flag.Parse()

	paths := utils.DefaultPaths()
	path := *configPath
	if path == "" {
		path = paths.ConfigFile()
	}

	switch {
	case *showVersion:
		fmt.Printf("ServerStriker %s\n", version.String())
	case *runInit:
		if err := initConfig(path); err != nil {
			log.Fatalf("init failed: %v", err)
		}
	case *setWebhook:
		if err := updateWebhook(path); err != nil {
			log.Fatalf("setwebhook failed: %v", err)
		}
	case *addService:
		if err := appendService(path); err != nil {
			log.Fatalf("addservice failed: %v", err)
		}
	case *showConfig:
		if err := printConfig(path); err != nil {
			log.Fatalf("config failed: %v", err)
		}
	case *showStatus:
		printServiceStatus()
	case *runDaemon:
		daemon(path, paths)
	default:
		flag.Usage()
	}
}

// daemon runs the monitoring loop until terminated. Invalid config is
// fatal: the agent refuses to run with undefined thresholds.
func daemon(configPath string, paths *utils.Paths) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}
	if err := paths.CheckRoot(); err != nil {
		log.Fatalf("Cannot prepare directories: %v", err)
	}

	logger := utils.NewLogger(paths.LogFile())
	defer logger.Close()

	notifier := notify.New(notify.Options{
		URL:    cfg.WebhookURL,
		Server: cfg.ServerName,
	}, logger)

	a := agent.New(cfg.ServerName, notifier, logger)
	for _, chk := range cfg.Checks(paths.LogFile()) {
		a.Register(chk, sourceFor(chk))
	}
	a.SetDailyReport(cfg.DailyReportCron)

	apiSrv := api.NewServer(a, cfg, logger)
	a.SetEventSink(apiSrv.EventSink())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := apiSrv.Run(ctx); err != nil {
			logger.Writef("Status API failed: %v", err)
		}
	}()

	if err := a.Run(ctx); err != nil {
		logger.Writef("Agent failed: %v", err)
		log.Fatalf("Agent failed: %v", err)
	}
}

// sourceFor wires a check definition to its metric source.
func sourceFor(chk alert.Check) metrics.Source {
	switch chk.Kind {
	case alert.KindCPU:
		return metrics.CPU()
	case alert.KindMemory:
		return metrics.Memory()
	case alert.KindDisk:
		return metrics.Disk(chk.Target)
	case alert.KindService:
		return metrics.ServiceActive(chk.Target)
	case alert.KindFailedUnits:
		return metrics.FailedUnits()
	case alert.KindFailedLogins:
		return metrics.FailedLogins(chk.Target)
	case alert.KindPendingUpdates:
		return metrics.PendingUpdates()
	case alert.KindLogScan:
		return metrics.LogErrors(chk.Target)
	default:
		return metrics.SourceFunc(func(ctx context.Context) (float64, error) {
			return 0, fmt.Errorf("unknown check kind %q", chk.Kind)
		})
	}
}

// printServiceStatus reports whether the systemd unit is running.
func printServiceStatus() {
	out, err := exec.Command("systemctl", "is-active", "serverstriker").Output()
	state := strings.TrimSpace(string(out))
	if state == "" && err != nil {
		fmt.Println("Could not read systemd status. Try: sudo systemctl status serverstriker")
		return
	}
	if state == "active" {
		fmt.Println("ServerStriker is running (systemd: active).")
		return
	}
	fmt.Printf("ServerStriker status: %s\n", state)
}
