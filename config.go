package gocoro

import "time"

// Config is the process-level configuration surface.
// It exists independently of the functional-option constructors
// (SchedulerOption/ManagerOption) so a process can load it from flags or a
// config file (see cmd/gocoroctl/config.go, which binds these fields to
// pflag/yaml.v3) and then turn it into ManagerOptions via ToManagerOptions.
type Config struct {
	// CoSchedNum is co_sched_num: number of scheduler goroutines. 0 means
	// "use runtime.NumCPU()".
	CoSchedNum int `yaml:"co_sched_num"`

	// CoStackSize is co_stack_size: a goroutine stack-growth hint in bytes
	// (see WithStackSizeHint for why this no longer bounds anything).
	CoStackSize int `yaml:"co_stack_size"`

	// TCPMaxRecvSize is tcp_max_recv_size. It is loaded and kept here only:
	// netco.RecvN does not read it and receives in a single loop without
	// chunking.
	TCPMaxRecvSize int `yaml:"tcp_max_recv_size"`

	// TCPMaxSendSize is tcp_max_send_size. It is loaded and kept here only:
	// netco's send path does not read it and does not chunk.
	TCPMaxSendSize int `yaml:"tcp_max_send_size"`

	// RPCConnTimeout is rpc_conn_timeout: idle-connection reap deadline.
	RPCConnTimeout time.Duration `yaml:"rpc_conn_timeout"`

	// RPCMaxMsgSize is rpc_max_msg_size: maximum accepted RPC message size.
	RPCMaxMsgSize int `yaml:"rpc_max_msg_size"`
}

// DefaultConfig returns a Config populated with gocoro's defaults.
func DefaultConfig() Config {
	return Config{
		CoSchedNum:     0,
		CoStackSize:    DefaultStackSize,
		TCPMaxRecvSize: DefaultTCPMaxRecvSize,
		TCPMaxSendSize: DefaultTCPMaxSendSize,
		RPCConnTimeout: DefaultRPCConnTimeout,
		RPCMaxMsgSize:  DefaultRPCMaxMsgSize,
	}
}

// ToManagerOptions converts Config into the ManagerOptions NewManager
// expects, so a process that loaded a Config from flags/YAML can hand it
// straight to NewManager.
func (c Config) ToManagerOptions() []ManagerOption {
	return []ManagerOption{
		WithSchedulerCount(c.CoSchedNum),
		WithSchedulerOptions(WithStackSizeHint(c.CoStackSize)),
	}
}
