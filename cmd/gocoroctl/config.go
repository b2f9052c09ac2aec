package main

import (
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/joeycumines/gocoro"
)

// bindConfigFlags registers pflag bindings for every gocoro.Config field
// onto fs, seeded from defaults. Values are written back into cfg when fs
// is parsed.
func bindConfigFlags(fs *pflag.FlagSet, cfg *gocoro.Config) {
	fs.IntVar(&cfg.CoSchedNum, "co-sched-num", cfg.CoSchedNum, "number of scheduler goroutines (0 = runtime.NumCPU())")
	fs.IntVar(&cfg.CoStackSize, "co-stack-size", cfg.CoStackSize, "goroutine stack-growth hint, in bytes")
	fs.IntVar(&cfg.TCPMaxRecvSize, "tcp-max-recv-size", cfg.TCPMaxRecvSize, "tcp_max_recv_size, in bytes (stored in Config; netco does not read it)")
	fs.IntVar(&cfg.TCPMaxSendSize, "tcp-max-send-size", cfg.TCPMaxSendSize, "tcp_max_send_size, in bytes (stored in Config; netco does not read it)")
	fs.DurationVar(&cfg.RPCConnTimeout, "rpc-conn-timeout", cfg.RPCConnTimeout, "idle RPC connection reap deadline")
	fs.IntVar(&cfg.RPCMaxMsgSize, "rpc-max-msg-size", cfg.RPCMaxMsgSize, "maximum accepted RPC message size, in bytes")
}

// loadConfigFile reads a YAML config file at path into a copy of
// gocoro.DefaultConfig, overridden by whatever fields the file sets.
func loadConfigFile(path string) (gocoro.Config, error) {
	cfg := gocoro.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
