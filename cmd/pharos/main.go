package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/pharos-os/pharos/arch"
	"github.com/pharos-os/pharos/kernel"
	"github.com/pharos-os/pharos/mem"
	"github.com/pharos-os/pharos/vfs"
)

type config struct {
	Arch   string   `toml:"arch"`
	Rootfs string   `toml:"rootfs"`
	Args   []string `toml:"args"`
	Env    []string `toml:"env"`
	Log    string   `toml:"log"`
	Frames int      `toml:"frames"`
}

func main() {
	fs := flag.NewFlagSet("pharos", flag.ExitOnError)
	confPath := fs.String("config", "", "machine config (toml)")
	archName := fs.String("arch", "riscv64", "target architecture")
	rootfs := fs.String("rootfs", "", "host directory to use as root filesystem")
	monitor := fs.Bool("monitor", false, "drop into the monitor after exec")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <program> [args...]\n", os.Args[0])
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	conf := config{Arch: *archName, Rootfs: *rootfs, Args: fs.Args()}
	if *confPath != "" {
		if _, err := toml.DecodeFile(*confPath, &conf); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}
	if len(fs.Args()) > 0 {
		conf.Args = fs.Args()
	}
	if len(conf.Args) == 0 {
		fs.Usage()
		os.Exit(1)
	}
	if *verbose || conf.Log == "debug" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	a, err := arch.GetArch(conf.Arch)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	files := vfs.New()
	if conf.Rootfs != "" {
		if err := files.LoadDir(conf.Rootfs); err != nil {
			fmt.Fprintf(os.Stderr, "rootfs: %v\n", err)
			os.Exit(1)
		}
	}
	k := kernel.New(a, mem.NewArena(conf.Frames), files)
	proc := k.Procs.NewProcess(a)

	path := vfs.Join(proc.Cwd, conf.Args[0])
	data, err := files.ReadFileLimit(path, kernel.MaxExecSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		os.Exit(1)
	}
	argv := make([][]byte, len(conf.Args))
	for i, s := range conf.Args {
		argv[i] = []byte(s)
	}
	envp := make([][]byte, len(conf.Env))
	for i, s := range conf.Env {
		envp[i] = []byte(s)
	}
	entry, err := k.Exec(proc.Pid, data, argv, envp, []byte(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "exec %s: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("[entry point @ 0x%x]\n", entry)
	fmt.Printf("[sp @ 0x%x] frames in use: %d\n", proc.Frame.SP(), k.MMU.Arena().InUse())
	if *monitor {
		if err := runMonitor(k, proc); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
