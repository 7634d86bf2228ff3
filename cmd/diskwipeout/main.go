package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/certificate"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/config"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/device"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/dispatch"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/errs"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/hiddenarea"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/logging"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/reporting"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/safety"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/verify"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/wipe"
)

const (
	Version = certificate.ToolVersion
	AppName = certificate.ToolName

	// Exit codes
	ExitSuccess  = 0
	ExitError    = 1
	ExitNotClean = 2 // operation finished but the verdict is not PASS
)

var (
	cfg    *config.Config
	logger zerolog.Logger

	configPath string
	logLevel   string

	// wipe flags
	methodName       string
	passes           int
	noVerify         bool
	removeHidden     bool
	forceDCO         bool
	requireClearance bool
	tolerateFailures bool
	allowSystemDisk  bool
	operatorName     string
	confirmToken     string
	overrideToken    string
	reportDir        string
	metricsListen    string

	// certs flags
	certsDevice string
	certsLimit  int
	verifyChain bool
)

var rootCmd = &cobra.Command{
	Use:     "diskwipeout",
	Short:   AppName + " - secure disk erasure with verification and certificates",
	Long:    AppName + " erases storage devices, verifies the result by sampling, and issues signed, chained erasure certificates.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger = logging.New(logging.Options{
			Level:   cfg.Logging.Level,
			File:    cfg.Logging.File,
			Console: cfg.Logging.Console,
		})
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var disksCmd = &cobra.Command{
	Use:   "disks",
	Short: "List wipe candidate devices",
	RunE:  runDisks,
}

var detectCmd = &cobra.Command{
	Use:   "detect <device>",
	Short: "Detect HPA/DCO hidden areas on a device",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetect,
}

var wipeCmd = &cobra.Command{
	Use:   "wipe <device>",
	Short: "Erase a device, verify the result, and issue a certificate",
	Args:  cobra.ExactArgs(1),
	RunE:  runWipe,
}

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Inspect the certificate ledger",
}

var certsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issued certificates",
	RunE:  runCertsList,
}

var certsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one certificate as a sanitization report",
	Args:  cobra.ExactArgs(1),
	RunE:  runCertsShow,
}

var certsVerifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Check a certificate's signature, and optionally its device chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runCertsVerify,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (trace/debug/info/warn/error)")

	wipeCmd.Flags().StringVarP(&methodName, "method", "m", "", "Erase method (zero/one/random/dod5220/secure-erase)")
	wipeCmd.Flags().IntVarP(&passes, "passes", "p", 0, "Pass count (0 = method default)")
	wipeCmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip post-wipe verification")
	wipeCmd.Flags().BoolVar(&removeHidden, "remove-hidden", false, "Remove HPA/DCO hidden areas before erasing")
	wipeCmd.Flags().BoolVar(&forceDCO, "force-dco", false, "Allow DCO removal (changes drive configuration)")
	wipeCmd.Flags().BoolVar(&requireClearance, "require-clearance", false, "Fail the operation if hidden areas cannot be cleared")
	wipeCmd.Flags().BoolVar(&tolerateFailures, "tolerate-failures", false, "Continue after a failed pass (weakens the certificate)")
	wipeCmd.Flags().BoolVar(&allowSystemDisk, "allow-system-disk", false, "Permit wiping the system disk (DANGEROUS)")
	wipeCmd.Flags().StringVar(&operatorName, "operator", "", "Operator name recorded on the certificate")
	wipeCmd.Flags().StringVar(&confirmToken, "confirm", "", "Confirmation token (prompted interactively when omitted)")
	wipeCmd.Flags().StringVar(&overrideToken, "override-token", "", "Second token required for system disk wipes")
	wipeCmd.Flags().StringVar(&reportDir, "report-dir", "./reports", "Directory for JSON and text reports")
	wipeCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Expose Prometheus metrics on this address during the wipe (e.g. :9090)")

	certsListCmd.Flags().StringVar(&certsDevice, "device", "", "Filter by device serial or path")
	certsListCmd.Flags().IntVar(&certsLimit, "limit", 20, "Maximum entries (0 = all)")
	certsVerifyCmd.Flags().BoolVar(&verifyChain, "chain", false, "Also verify the device's whole certificate chain")
	certsVerifyCmd.Flags().StringVar(&certsDevice, "device", "", "Device identity for --chain (defaults to the certificate's device)")

	certsCmd.AddCommand(certsListCmd, certsShowCmd, certsVerifyCmd)
	rootCmd.AddCommand(disksCmd, detectCmd, wipeCmd, certsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}

func runDisks(cmd *cobra.Command, args []string) error {
	inv := device.NewInventory(logger)
	devices, err := inv.List()
	if err != nil {
		return err
	}

	fmt.Printf("%-14s %-10s %-12s %-24s %-20s %s\n", "DEVICE", "CLASS", "SIZE", "MODEL", "SERIAL", "SYSTEM")
	for _, d := range devices {
		system := ""
		if d.IsSystemDisk {
			system = "yes"
		}
		fmt.Printf("%-14s %-10s %-12s %-24s %-20s %s\n",
			d.Path, d.Class, formatBytes(d.SizeBytes()), truncate(d.Model, 24), truncate(d.Serial, 20), system)
	}
	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inspector := hiddenarea.NewInspector(hiddenarea.NewHdparmSource(logger), logger)
	report, err := inspector.Detect(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Device           : %s\n", args[0])
	fmt.Printf("Current max      : %d sectors\n", report.CurrentMaxSectors)
	fmt.Printf("Native max       : %d sectors\n", report.NativeMaxSectors)
	fmt.Printf("Physical         : %d sectors\n", report.PhysicalSectors)
	fmt.Printf("HPA              : %v (%d sectors hidden)\n", report.HPAPresent(), report.HPASize())
	fmt.Printf("DCO              : %v (%d sectors hidden)\n", report.DCOPresent(), report.DCOSize())
	return nil
}

func runWipe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := args[0]
	inv := device.NewInventory(logger)
	dev, err := inv.Snapshot(path)
	if err != nil {
		return err
	}
	if !inv.Writable(path) {
		return fmt.Errorf("%s is not writable by this process (run as root?)", path)
	}

	if methodName == "" {
		methodName = cfg.Wipe.DefaultMethod
	}
	method, err := dispatch.ValidateMethod(methodName)
	if err != nil {
		return err
	}
	if passes <= 0 {
		passes = dispatch.MethodPasses(method)
	}
	if passes > cfg.Wipe.MaxPasses {
		return fmt.Errorf("pass count %d exceeds configured maximum %d", passes, cfg.Wipe.MaxPasses)
	}

	req := &dispatch.WipeRequest{
		Device:                     dev,
		Method:                     method,
		Passes:                     passes,
		Verify:                     !noVerify,
		RemoveHiddenAreas:          removeHidden,
		ForceDCO:                   forceDCO,
		RequireHiddenAreaClearance: requireClearance,
		TolerateEraseFailure:       tolerateFailures,
		Operator:                   operatorName,
		AllowSystemDisk:            allowSystemDisk,
		ConfirmToken:               confirmToken,
		OverrideToken:              overrideToken,
	}
	if err := promptTokens(req); err != nil {
		return err
	}

	store, err := certificate.OpenStore(cfg.Certificate.StorePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	builder, err := certificate.NewBuilder(cfg.Certificate, logger)
	if err != nil {
		return err
	}

	executor := dispatch.NewCompositeExecutor(
		dispatch.NewFileExecutor(logger, cfg.Wipe.ChunkSize, cfg.Wipe.MaxSpeedMBps),
		dispatch.NewHardwareExecutor(logger),
	)

	orch := wipe.NewOrchestrator(cfg, logger, wipe.Deps{
		Guard:      safety.NewGuard(cfg.Safety, logger),
		Inspector:  hiddenarea.NewInspector(hiddenarea.NewHdparmSource(logger), logger),
		Dispatcher: dispatch.NewDispatcher(logger, executor),
		Engine:     verify.NewEngine(cfg.Verification, logger),
		Builder:    builder,
		Store:      store,
		Prober:     inv,
	})

	if metricsListen != "" {
		go serveMetrics(metricsListen)
	}

	handle, err := orch.Start(ctx, req)
	if err != nil {
		return err
	}

	for p := range handle.Progress {
		if p.TotalBytes > 0 {
			fmt.Printf("\rPass %d: %5.1f%% (%s / %s)",
				p.PassIndex+1,
				float64(p.BytesWritten)/float64(p.TotalBytes)*100,
				formatBytes(p.BytesWritten), formatBytes(p.TotalBytes))
			continue
		}
		if p.Phase != "" {
			fmt.Printf("\n[%s]", p.Phase)
		}
	}
	fmt.Println()

	result, runErr := handle.Wait()
	if result != nil && result.Certificate != nil {
		if jsonPath, err := reporting.WriteJSON(result.Certificate, reportDir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: JSON report not written: %v\n", err)
		} else {
			fmt.Printf("JSON report : %s\n", jsonPath)
		}
		if textPath, err := reporting.WriteText(result.Certificate, reportDir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: text report not written: %v\n", err)
		} else {
			fmt.Printf("Text report : %s\n", textPath)
		}
		fmt.Printf("Certificate : %s (%s)\n", result.Certificate.ID, result.Certificate.Status)
	}
	if runErr != nil {
		if errors.Is(runErr, errs.ErrCancelled) {
			fmt.Println("Operation cancelled; the certificate records the partial erase.")
			os.Exit(ExitNotClean)
		}
		return runErr
	}

	fmt.Printf("State       : %s\n", result.State)
	if v := result.Certificate.Verdict; v != nil {
		fmt.Printf("Verdict     : %s (mean entropy %.3f bits/byte)\n", v.Classification, v.MeanEntropy)
		if v.Classification != verify.ClassificationPass {
			os.Exit(ExitNotClean)
		}
	}
	if result.State != wipe.StateDone {
		os.Exit(ExitNotClean)
	}
	return nil
}

// promptTokens collects the confirmation tokens interactively when they
// were not passed as flags.
func promptTokens(req *dispatch.WipeRequest) error {
	reader := bufio.NewReader(os.Stdin)

	if cfg.Safety.RequireConfirmation && req.ConfirmToken == "" {
		fmt.Printf("This will IRREVERSIBLY DESTROY all data on %s (%s %s).\n",
			req.Device.Path, req.Device.Model, formatBytes(req.Device.SizeBytes()))
		fmt.Printf("Type the confirmation token to continue: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading confirmation: %w", err)
		}
		req.ConfirmToken = strings.TrimSpace(line)
	}

	if req.Device.IsSystemDisk && req.AllowSystemDisk && req.OverrideToken == "" {
		fmt.Printf("%s is the SYSTEM DISK. Type a second, different token to confirm: ", req.Device.Path)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading override token: %w", err)
		}
		req.OverrideToken = strings.TrimSpace(line)
	}
	return nil
}

func runCertsList(cmd *cobra.Command, args []string) error {
	store, err := certificate.OpenStore(cfg.Certificate.StorePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context(), certsDevice, certsLimit)
	if err != nil {
		return err
	}

	fmt.Printf("%-36s %-14s %-12s %-20s %s\n", "ID", "DEVICE", "STATUS", "ISSUED", "HASH")
	for _, e := range entries {
		fmt.Printf("%-36s %-14s %-12s %-20s %s\n",
			e.ID, e.DevicePath, e.Status, e.CreatedAt.Format("2006-01-02 15:04:05"), truncate(e.ContentHash, 16))
	}
	return nil
}

func runCertsShow(cmd *cobra.Command, args []string) error {
	store, err := certificate.OpenStore(cfg.Certificate.StorePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	cert, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Print(reporting.RenderText(cert))
	return nil
}

func runCertsVerify(cmd *cobra.Command, args []string) error {
	store, err := certificate.OpenStore(cfg.Certificate.StorePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	builder, err := certificate.NewBuilder(cfg.Certificate, logger)
	if err != nil {
		return err
	}

	cert, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := builder.Verify(cert); err != nil {
		fmt.Printf("Certificate %s: INVALID (%v)\n", cert.ID, err)
		os.Exit(ExitNotClean)
	}
	fmt.Printf("Certificate %s: signature valid (%s)\n", cert.ID, cert.Scheme)

	if verifyChain {
		identity := certsDevice
		if identity == "" {
			identity = cert.Device.Identity()
		}
		if err := store.VerifyChain(cmd.Context(), identity); err != nil {
			fmt.Printf("Chain for %s: BROKEN (%v)\n", identity, err)
			os.Exit(ExitNotClean)
		}
		fmt.Printf("Chain for %s: intact\n", identity)
	}
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn().Err(err).Str("addr", addr).Msg("metrics listener stopped")
	}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
