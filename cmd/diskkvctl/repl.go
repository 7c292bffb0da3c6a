package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/raptorjs3/raptor-cache/pkg/diskkv"
)

var replCommands = []string{"get", "put", "rm", "flush", "help", "exit", "quit"}

// runREPL drops into an interactive session over store, in the style of
// the teacher's cmd/sloty REPL: liner for line editing and history,
// prompt "diskkv> ", and a small fixed command set.
func runREPL(store *diskkv.Store, stdin, stdout, stderr *os.File) int {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(partial string) []string {
		var out []string

		for _, c := range replCommands {
			if strings.HasPrefix(c, partial) {
				out = append(out, c)
			}
		}

		return out
	})

	historyPath := replHistoryPath()

	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintln(stdout, "diskkvctl REPL — commands: get <key>, put <key> <value>, rm <key>, flush, help, exit")

	for {
		input, err := line.Prompt("diskkv> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				break
			}

			fmt.Fprintln(stderr, "error:", err)
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		fields := strings.Fields(input)

		switch fields[0] {
		case "exit", "quit", "q":
			if f, err := os.Create(historyPath); err == nil {
				line.WriteHistory(f)
				f.Close()
			}

			return 0
		case "help":
			fmt.Fprintln(stdout, "commands: get <key>, put <key> <value>, rm <key>, flush, help, exit")
		default:
			if err := dispatch(store, fields, stdout); err != nil {
				fmt.Fprintln(stderr, "error:", err)
			}
		}
	}

	return 0
}

func replHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".diskkvctl_history"
	}

	return filepath.Join(home, ".diskkvctl_history")
}
