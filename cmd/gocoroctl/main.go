//go:build linux || darwin

// Command gocoroctl runs gocoro's demo workloads: a JSON-RPC echo server
// (serve) and a coroutine-dispatch load test that reports scheduler
// latency/throughput stats (bench).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/joeycumines/gocoro"
	"github.com/joeycumines/gocoro/netco"
	"github.com/joeycumines/gocoro/rpc"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	cfg := gocoro.DefaultConfig()

	root := &cobra.Command{
		Use:   "gocoroctl",
		Short: "Run gocoro's coroutine-runtime demos",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file (defaults merged under it)")
	bindConfigFlags(root.PersistentFlags(), &cfg)

	root.AddCommand(newServeCmd(&cfg), newBenchCmd(&cfg))

	cobra.OnInitialize(func() {
		if cfgPath == "" {
			return
		}
		loaded, err := loadConfigFile(cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gocoroctl: loading %s: %v\n", cfgPath, err)
			os.Exit(1)
		}
		cfg = loaded
	})

	return root
}

func newServeCmd(cfg *gocoro.Config) *cobra.Command {
	var (
		addr   string
		secret string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a JSON-RPC echo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfg, addr, secret)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9090", "address to listen on")
	cmd.Flags().StringVar(&secret, "secret", "gocoro-demo-secret", "shared HMAC secret clients must present")
	return cmd
}

func runServe(ctx context.Context, cfg gocoro.Config, addr, secret string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m, err := gocoro.NewManager(ctx, cfg.ToManagerOptions()...)
	if err != nil {
		return err
	}
	defer m.Stop(context.Background())

	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return err
	}

	listener, err := netco.NewTCPSocket(unixFamilyFor(tcpAddr))
	if err != nil {
		return err
	}
	if err := listener.Bind(tcpAddr); err != nil {
		return err
	}
	if err := listener.Listen(128); err != nil {
		return err
	}

	server := rpc.NewServer([]byte(secret), echoHandler, cfg)

	fmt.Printf("gocoroctl: serving on %s (%d schedulers)\n", addr, m.SchedulerCount())

	done := make(chan error, 1)
	m.Go(ctx, func(ctx context.Context) {
		done <- server.Serve(ctx, m, listener)
	})

	select {
	case <-ctx.Done():
		_ = server.Shutdown(context.Background())
		return nil
	case err := <-done:
		return err
	}
}

func echoHandler(ctx context.Context, req *rpc.Request) ([]byte, error) {
	return json.Marshal(map[string]json.RawMessage{"echo": req.Params})
}

func newBenchCmd(cfg *gocoro.Config) *cobra.Command {
	var (
		coroutines int
		duration   time.Duration
		sleepEach  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load-test the scheduler with sleeping coroutines and report latency/throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), *cfg, coroutines, duration, sleepEach)
		},
	}
	cmd.Flags().IntVar(&coroutines, "coroutines", 1000, "number of concurrent sleeping coroutines")
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "how long to run the benchmark")
	cmd.Flags().DurationVar(&sleepEach, "sleep", 10*time.Millisecond, "sleep duration per coroutine iteration")
	return cmd
}

func runBench(ctx context.Context, cfg gocoro.Config, coroutines int, duration, sleepEach time.Duration) error {
	opts := append(cfg.ToManagerOptions(), gocoro.WithSchedulerOptions(gocoro.WithMetrics(true)))
	m, err := gocoro.NewManager(ctx, opts...)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	for i := 0; i < coroutines; i++ {
		m.Go(ctx, func(ctx context.Context) {
			for runCtx.Err() == nil {
				if err := gocoro.Sleep(ctx, sleepEach); err != nil {
					return
				}
			}
		})
	}

	<-runCtx.Done()
	printBenchReport(m)
	return m.Stop(context.Background())
}

func printBenchReport(m *gocoro.Manager) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Println(bold("scheduler resume-latency / throughput"))

	headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
	tbl := table.New("Scheduler", "TPS", "P50", "P95", "P99", "Max", "ReadyMax")
	tbl.WithHeaderFormatter(headerFmt)

	for i := 0; i < m.SchedulerCount(); i++ {
		metrics := m.Scheduler(i).Metrics()
		if metrics == nil {
			continue
		}
		snap := metrics.Snapshot()
		tbl.AddRow(i, fmt.Sprintf("%.1f", snap.TPS), snap.P50, snap.P95, snap.P99, snap.Max, snap.ReadyMax)
	}
	tbl.Print()
}

func unixFamilyFor(addr *net.TCPAddr) int {
	if addr.IP.To4() != nil {
		return unix.AF_INET
	}
	return unix.AF_INET6
}
