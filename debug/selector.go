package debug

type Tselector string

// ALWAYS
const (
	ALWAYS Tselector = "ALWAYS"
	ERROR            = "ERROR"
	NEVER            = "NEVER"
)

// ERR
const (
	ERR Tselector = "_ERR"
)

// Tests and benchmarks
const (
	TEST  Tselector = "TEST"
	BENCH           = "BENCH"
)

// Kernel
const (
	KERNEL     Tselector = "KERNEL"
	KERNEL_ERR           = KERNEL + ERR
	CONFIG               = "CONFIG"
	THREAD               = "THREAD"
)

// Process lifecycle
const (
	PROC        Tselector = "PROC"
	PROCTAB               = "PROCTAB"
	PROCTAB_ERR           = PROCTAB + ERR
	LEDGER                = "LEDGER"
	FORK                  = "FORK"
	FORK_ERR              = FORK + ERR
	EXIT                  = "EXIT"
	WAIT                  = "WAIT"
	WAIT_ERR              = WAIT + ERR
	EXEC                  = "EXEC"
	EXEC_ERR              = EXEC + ERR
	SYSCALL               = "SYSCALL"
	SYSCALL_ERR           = SYSCALL + ERR
)

// Collaborators
const (
	VM         Tselector = "VM"
	VM_ERR               = VM + ERR
	LOADER               = "LOADER"
	LOADER_ERR           = LOADER + ERR
	USERBIN              = "USERBIN"
)

const (
	REFMAP_SUFFIX Tselector = "_REFMAP"
)
