package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"icmp-ping/internal/capture"
	"icmp-ping/internal/config"
	"icmp-ping/internal/metrics"
	"icmp-ping/internal/network"
	"icmp-ping/internal/resolve"
	"icmp-ping/internal/session"
	"icmp-ping/internal/stats"
	"icmp-ping/pkg/types"
)

var (
	version = "1.0.0"
	cfgFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "icmp-ping <target>",
		Short: "Send ICMP echo requests to a host and report round-trip statistics",
		Long: `icmp-ping sends ICMP echo requests over a raw socket, one per interval,
matches the echo replies and prints per-probe results followed by loss and
round-trip statistics. Opening the raw socket requires root or CAP_NET_RAW.`,
		Version:      version,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         run,
	}

	// Configuration file
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "Configuration file path (default: config.yaml)")

	// CLI overrides
	rootCmd.Flags().IntP("count", "n", 4, "Number of echo requests to send")
	rootCmd.Flags().IntP("size", "l", 8, "Payload size in bytes (at least 8)")
	rootCmd.Flags().BoolP("infinite", "t", false, "Ping until interrupted with Ctrl+C")
	rootCmd.Flags().IntP("timeout", "w", 1000, "Reply timeout in ms")
	rootCmd.Flags().BoolP("resolve", "a", false, "Resolve the address to a host name")
	rootCmd.Flags().Int("interval", 1000, "Delay between probes in ms")
	rootCmd.Flags().String("identifier", "", "Echo identifier strategy (pid|random)")
	rootCmd.Flags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.Flags().String("export", "", "Write final statistics as JSON to this file")
	rootCmd.Flags().Int("report-interval", 0, "Print running statistics every N seconds")
	rootCmd.Flags().String("capture", "", "Write sent and received packets to this pcap file")
	rootCmd.Flags().String("metrics-listen", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(newInspectCmd())
	return rootCmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <capture.pcap>",
		Short: "Count the ICMP messages in a capture written with --capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showCaptureStats(cmd.OutOrStdout(), args[0])
		},
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Load configuration
	v := viper.New()
	config.SetDefaults(v)

	// Load config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK if using CLI flags
		log.Debug("No config file found, using defaults and CLI flags")
	}

	// Bind CLI flags (override config file values)
	bindViperFlags(v, cmd)
	v.Set("target", args[0])

	cfg, err := config.LoadWithViper(v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logging
	setupLogging(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Debug(cfg.Summary())

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig).Debug("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	out := cmd.OutOrStdout()

	resolver := resolve.NewResolver()
	dest, err := resolver.Resolve(ctx, cfg.Target)
	if err != nil {
		return err
	}

	displayName := cfg.Target
	if cfg.Resolve.Reverse {
		name, err := resolver.Reverse(ctx, dest)
		if err != nil {
			log.WithError(err).Warn("Reverse lookup failed")
		} else {
			displayName = name
		}
	}

	id, err := session.NewIdentifierAllocator(cfg.Probe.IdentifierStrategy).Allocate()
	if err != nil {
		return err
	}

	sock, err := network.OpenRawSocket()
	if err != nil {
		if errors.Is(err, network.ErrPermissionDenied) {
			return fmt.Errorf("%w (run as root or grant CAP_NET_RAW)", err)
		}
		return err
	}
	defer sock.Close()

	transportOpts := network.Options{}
	if cfg.Capture.File != "" {
		writer, err := capture.Create(cfg.Capture.File)
		if err != nil {
			return err
		}
		defer writer.Close()
		transportOpts.Tap = writer
		log.WithField("file", cfg.Capture.File).Info("Capturing packets")
	}
	transport := network.NewTransport(sock, transportOpts)

	observers := []func(types.ProbeOutcome){printOutcome(out, dest.String())}
	if cfg.Metrics.Listen != "" {
		exporter, err := metrics.NewExporter(dest.String())
		if err != nil {
			return fmt.Errorf("failed to create metrics exporter: %w", err)
		}
		if _, err := exporter.Serve(ctx, cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("failed to start metrics exporter: %w", err)
		}
		observers = append(observers, exporter.Observe)
	}

	// Create stats collector and reporter
	collector := stats.NewCollector()
	reporter := stats.NewReporter(collector, dest.String(), cfg.Stats.ReportIntervalSec, cfg.Stats.ExportFile)
	reporter.SetOutput(out)
	if cfg.Stats.Enabled {
		reporter.StartPeriodicReport(ctx)
	}

	sess, err := session.New(session.Config{
		Target:      dest,
		Identifier:  id,
		Count:       cfg.Probe.Count,
		Infinite:    cfg.Probe.Infinite,
		PayloadSize: cfg.Probe.Size,
		Timeout:     cfg.Timeout(),
		Interval:    cfg.Interval(),
	}, transport, collector, session.Options{
		OnOutcome: func(o types.ProbeOutcome) {
			for _, observe := range observers {
				observe(o)
			}
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nPinging %s [%s] with %d bytes of data:\n", displayName, dest, cfg.Probe.Size)

	_, runErr := sess.Run(ctx)
	if ctx.Err() != nil {
		fmt.Fprintln(out, "Ping interrupted.")
	}
	if runErr != nil {
		log.WithError(runErr).Error("Ping aborted")
	}

	// Print final statistics
	if cfg.Stats.Enabled {
		reporter.PrintFinalReport()
		if err := reporter.ExportJSON(); err != nil {
			log.WithError(err).Warn("Failed to export statistics")
		}
	}

	return runErr
}

func printOutcome(w io.Writer, dest string) func(types.ProbeOutcome) {
	return func(o types.ProbeOutcome) {
		switch {
		case o.Success():
			fmt.Fprintf(w, "Reply from %s: bytes=%d time=%dms TTL=%d\n", dest, o.ReplySize, o.DelayMillis(), o.TTL)
		case o.Err != nil:
			fmt.Fprintf(w, "General failure: %v\n", o.Err)
		default:
			fmt.Fprintln(w, "Request timed out.")
		}
	}
}

func showCaptureStats(w io.Writer, filename string) error {
	counts, err := capture.NewParser().CountMessages(filename)
	if err != nil {
		return fmt.Errorf("failed to count messages: %w", err)
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Capture Message Statistics:")
	total := 0
	for _, name := range names {
		fmt.Fprintf(w, "  %-30s %d\n", name, counts[name])
		total += counts[name]
	}
	fmt.Fprintf(w, "  %-30s %d\n", "Total:", total)
	return nil
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.WithError(err).Warn("Failed to open log file, using console only")
		} else {
			log.SetOutput(f)
		}
	}
}

func bindViperFlags(v *viper.Viper, cmd *cobra.Command) {
	if cmd.Flags().Changed("count") {
		val, _ := cmd.Flags().GetInt("count")
		v.Set("probe.count", val)
	}
	if cmd.Flags().Changed("size") {
		val, _ := cmd.Flags().GetInt("size")
		v.Set("probe.size", val)
	}
	if cmd.Flags().Changed("infinite") {
		val, _ := cmd.Flags().GetBool("infinite")
		v.Set("probe.infinite", val)
	}
	if cmd.Flags().Changed("timeout") {
		val, _ := cmd.Flags().GetInt("timeout")
		v.Set("probe.timeout_ms", val)
	}
	if cmd.Flags().Changed("interval") {
		val, _ := cmd.Flags().GetInt("interval")
		v.Set("probe.interval_ms", val)
	}
	if cmd.Flags().Changed("identifier") {
		val, _ := cmd.Flags().GetString("identifier")
		v.Set("probe.identifier_strategy", val)
	}
	if cmd.Flags().Changed("resolve") {
		val, _ := cmd.Flags().GetBool("resolve")
		v.Set("resolve.reverse", val)
	}
	if cmd.Flags().Changed("log-level") {
		val, _ := cmd.Flags().GetString("log-level")
		v.Set("logging.level", val)
	}
	if cmd.Flags().Changed("export") {
		val, _ := cmd.Flags().GetString("export")
		v.Set("stats.export_file", val)
	}
	if cmd.Flags().Changed("report-interval") {
		val, _ := cmd.Flags().GetInt("report-interval")
		v.Set("stats.report_interval_sec", val)
	}
	if cmd.Flags().Changed("capture") {
		val, _ := cmd.Flags().GetString("capture")
		v.Set("capture.file", val)
	}
	if cmd.Flags().Changed("metrics-listen") {
		val, _ := cmd.Flags().GetString("metrics-listen")
		v.Set("metrics.listen", val)
	}
}
