package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"os161/config"
	db "os161/debug"
	"os161/kernel"
	"os161/loadgen"
	"os161/userbin"
)

var paramFile = flag.String("param", "", "YAML boot parameters")
var nbench = flag.Int("bench", 0, "Run N fork/exit/wait roundtrips and report latencies")
var nthread = flag.Int("nthread", 1, "Concurrent benchmark callers")
var ps = flag.Bool("ps", false, "Print the process table after running")

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %v [flags] [program [args...]]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	param := kernel.NewParam()
	if *paramFile != "" {
		p, err := kernel.ReadParam(*paramFile)
		if err != nil {
			db.DFatalf("ReadParam %v: %v", *paramFile, err)
		}
		param = p
	}
	if flag.NArg() > 0 {
		param.Init = flag.Args()
	}
	if len(param.Init) == 0 && *nbench == 0 {
		usage()
		os.Exit(2)
	}
	k, err := kernel.NewKernel(param)
	if err != nil {
		db.DFatalf("NewKernel: %v", err)
	}

	if *nbench > 0 {
		bench(k)
	} else {
		st, err := k.Boot()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v: %v\n", param.Init, err)
			os.Exit(1)
		}
		fmt.Printf("%v: %v\n", param.Init, st)
	}
	if *ps {
		for _, pi := range k.Table().Snapshot() {
			fmt.Println(pi)
		}
		fmt.Printf("pcb arena %v\n", k.Table().ArenaStats())
	}
	pgsz := uint64(config.Conf.VM.PGSIZE)
	db.DPrintf(db.KERNEL, "memory in use %v", humanize.IBytes(uint64(k.Physmem().InUse())*pgsz))
	if err := k.Shutdown(); err != nil {
		db.DFatalf("Shutdown: %v", err)
	}
}

func bench(k *kernel.Kernel) {
	lg := loadgen.NewLoadGenerator(*nbench, *nthread, func() error {
		st, err := k.RunProgram(userbin.FORKTEST, []string{userbin.FORKTEST})
		if err != nil {
			return err
		}
		if st.ExitStatus() != userbin.OK {
			return fmt.Errorf("forktest: %v", st)
		}
		return nil
	})
	lg.Run()
	st, err := lg.Stats()
	if err != nil {
		db.DFatalf("Stats: %v", err)
	}
	fmt.Printf("fork/exit/wait x%s, max %s pids\n%v\n", humanize.Comma(int64(*nbench)), humanize.Comma(int64(config.Conf.Proc.MAX_PROCS)), st)
}
