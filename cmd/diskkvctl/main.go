// Command diskkvctl is a small CLI and REPL over a diskkv.Store.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	os.Exit(Run(os.Stdin, os.Stdout, os.Stderr, os.Args, os.Environ(), sigCh))
}

// Run is the testable entry point: explicit stdio streams, args, and env,
// matching the teacher's cli.Run(stdin, stdout, stderr, args, env, sigCh)
// shape so no command writes to a global os.Stdout/os.Stderr directly.
func Run(stdin *os.File, stdout, stderr *os.File, args []string, env []string, sigCh chan os.Signal) int {
	flags, remaining, err := parseFlags(args[1:])
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	workDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(stderr, "error: cannot get working directory:", err)
		return 1
	}

	cfg, err := LoadConfig(workDir, flags.configPath, flags.overrides, env)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	store, err := openStoreFromConfig(cfg)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer store.Close()

	go func() {
		<-sigCh
		store.Close()
		os.Exit(130)
	}()

	if len(remaining) == 0 {
		return runREPL(store, stdin, stdout, stderr)
	}

	return runOnce(store, remaining, stdout, stderr)
}
