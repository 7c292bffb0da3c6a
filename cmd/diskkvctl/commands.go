package main

import (
	"fmt"
	"io"
	"time"

	"github.com/raptorjs3/raptor-cache/pkg/diskkv"
)

func openStoreFromConfig(cfg Config) (*diskkv.Store, error) {
	mode := diskkv.SingleFile
	if !cfg.SingleFile {
		mode = diskkv.MultiFile
	}

	return diskkv.Open(diskkv.Options{
		Dir:        cfg.Dir,
		Mode:       mode,
		FlushDelay: diskkv.Delay(time.Duration(cfg.FlushDelayMS) * time.Millisecond),
	})
}

// runOnce dispatches a single subcommand invocation: "get <key>", "put
// <key> <value>", "rm <key>", or "flush". It then flushes, since the
// process exits right afterward and Store.Close does not flush.
func runOnce(store *diskkv.Store, args []string, stdout, stderr io.Writer) int {
	if err := dispatch(store, args, stdout); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	if err := store.Flush(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	return 0
}

func dispatch(store *diskkv.Store, args []string, stdout io.Writer) error {
	switch args[0] {
	case "get":
		if len(args) != 2 {
			return fmt.Errorf("usage: get <key>")
		}

		return cmdGet(store, args[1], stdout)
	case "put":
		if len(args) != 3 {
			return fmt.Errorf("usage: put <key> <value>")
		}

		return store.Put(args[1], args[2])
	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("usage: rm <key>")
		}

		return store.Remove(args[1])
	case "flush":
		return store.Flush()
	default:
		return fmt.Errorf("unknown command %q (want get, put, rm, or flush)", args[0])
	}
}

func cmdGet(store *diskkv.Store, key string, stdout io.Writer) error {
	entry, ok, err := store.Get(key)
	if err != nil {
		return err
	}

	if !ok {
		fmt.Fprintln(stdout, "(absent)")
		return nil
	}

	value := entry.Value
	if value == nil && entry.Reader != nil {
		rc, err := entry.Reader()
		if err != nil {
			return fmt.Errorf("open value reader: %w", err)
		}
		defer rc.Close()

		value, err = io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("read value: %w", err)
		}
	}

	fmt.Fprintf(stdout, "%s\n", value)

	return nil
}
