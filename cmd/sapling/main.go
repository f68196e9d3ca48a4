// main.go - Command-line front end for saplingcore.
//
// Subcommands:
//
//	setup                         generate and save the spend and output parameters
//	keygen  -seed-hex H [-path P] print the xsk, xfvk and default address
//	address -xfvk H [-index H]    print the next address at or above index
//	demo                          fund, spend and apply a bundle to a ledger
//	status                        print health and metrics as JSON
//
// Every subcommand reads sapling.json (see -config) and SAPLING_* overrides.

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"saplingcore/internal/keys"
	"saplingcore/internal/params"
	"saplingcore/sapling"
)

const version = "0.1.0"

type app struct {
	cfg     *Config
	log     *Logger
	metrics *MetricsCollector
	health  *HealthChecker
	out     io.Writer
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: sapling [-config file] <setup|keygen|address|demo|status> [flags]")
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	global := flag.NewFlagSet("sapling", flag.ContinueOnError)
	configPath := global.String("config", "sapling.json", "config file, created with defaults if missing")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		usage(out)
		return errors.New("missing subcommand")
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	auditPath := ""
	if cfg.EnableAudit {
		auditPath = cfg.AuditLogPath
	}
	log, err := NewLogger(cfg.LogLevel, cfg.LogFile, auditPath)
	if err != nil {
		return err
	}
	defer log.Close()
	params.SetLogger(log.Zerolog())

	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: NewMetricsCollector(),
		health:  NewHealthChecker(cfg, version),
		out:     out,
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "setup":
		err = a.setup()
	case "keygen":
		err = a.keygen(rest)
	case "address":
		err = a.address(rest)
	case "demo":
		err = a.demo()
	case "status":
		err = a.status()
	default:
		usage(out)
		return fmt.Errorf("unknown subcommand %q", cmd)
	}
	if err != nil {
		a.metrics.RecordError(cmd)
		log.Error("%s failed: %v", cmd, err)
		log.Audit("command_failed", map[string]interface{}{"command": cmd, "error": err.Error()})
	}
	return err
}

func (a *app) setup() error {
	a.log.Info("generating parameters, this takes a while")
	start := time.Now()
	spend, output, err := params.Setup()
	if err != nil {
		return err
	}
	for _, p := range []string{a.cfg.SpendParamsPath, a.cfg.OutputParamsPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("failed to create parameter directory: %w", err)
		}
	}
	if err := params.SaveFiles(a.cfg.SpendParamsPath, a.cfg.OutputParamsPath, spend, output); err != nil {
		return err
	}
	a.log.Audit("params_generated", map[string]interface{}{
		"spend":  a.cfg.SpendParamsPath,
		"output": a.cfg.OutputParamsPath,
	})
	fmt.Fprintf(a.out, "wrote %s (%d bytes) and %s (%d bytes) in %s\n",
		a.cfg.SpendParamsPath, len(spend), a.cfg.OutputParamsPath, len(output), time.Since(start).Round(time.Millisecond))
	return nil
}

func (a *app) loadParams() error {
	if err := os.MkdirAll(filepath.Dir(a.cfg.SpendParamsPath), 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(a.cfg.OutputParamsPath), 0755); err != nil {
		return err
	}
	start := time.Now()
	if err := params.SetupOrLoadFiles(a.cfg.SpendParamsPath, a.cfg.OutputParamsPath); err != nil {
		return err
	}
	took := time.Since(start)
	a.metrics.RecordParamsLoad(took)
	a.log.Debug("parameters ready in %s", took.Round(time.Millisecond))
	return nil
}

func (a *app) keygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	seedHex := fs.String("seed-hex", "", "seed bytes as hex (32 to 252 bytes)")
	path := fs.String("path", a.cfg.DefaultPath, "derivation path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	seed, err := hex.DecodeString(*seedHex)
	if err != nil {
		return fmt.Errorf("-seed-hex: %w", err)
	}

	steps, err := keys.ParsePath(*path)
	if err != nil {
		return err
	}
	canonical := keys.FormatPath(steps)

	xsk, err := sapling.XSK(seed, canonical)
	if err != nil {
		return err
	}
	xfvk, err := sapling.XFVKFromXSK(xsk)
	if err != nil {
		return err
	}
	def, err := sapling.DefaultPaymentAddressFromXFVK(xfvk)
	if err != nil {
		return err
	}
	encoded, err := sapling.EncodePaymentAddress(def[sapling.DiversifierIndexSize:])
	if err != nil {
		return err
	}
	a.log.Audit("key_derived", map[string]interface{}{"path": canonical})
	fmt.Fprintf(a.out, "path:    %s\nxsk:     %x\nxfvk:    %x\nindex:   %x\naddress: %s\n",
		canonical, xsk, xfvk, def[:sapling.DiversifierIndexSize], encoded)
	return nil
}

func (a *app) address(args []string) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	xfvkHex := fs.String("xfvk", "", "extended full viewing key as hex")
	indexHex := fs.String("index", "0000000000000000000000", "11-byte diversifier index as hex")
	if err := fs.Parse(args); err != nil {
		return err
	}
	xfvk, err := hex.DecodeString(*xfvkHex)
	if err != nil {
		return fmt.Errorf("-xfvk: %w", err)
	}
	index, err := hex.DecodeString(*indexHex)
	if err != nil {
		return fmt.Errorf("-index: %w", err)
	}
	next, err := sapling.PaymentAddressFromXFVK(xfvk, index)
	if err != nil {
		return err
	}
	encoded, err := sapling.EncodePaymentAddress(next[sapling.DiversifierIndexSize:])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "index:   %x\naddress: %s\n", next[:sapling.DiversifierIndexSize], encoded)
	return nil
}

func (a *app) status() error {
	if _, err := os.Stat(a.cfg.SpendParamsPath); err == nil {
		if err := params.LoadFiles(a.cfg.SpendParamsPath, a.cfg.OutputParamsPath); err != nil {
			a.log.Warn("loading parameters: %v", err)
		}
	}
	report := map[string]interface{}{
		"health":  a.health.Check(),
		"metrics": a.metrics.GetMetricsSummary(),
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func (a *app) timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(a.cfg.TimeoutSeconds)*time.Second)
}
