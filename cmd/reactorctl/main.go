// Command reactorctl is an interactive shell over an in-process Engine: a
// prompt, line-dispatch loop, and signal handling, with line editing via
// peterh/liner and the shell reachable through a spf13/cobra command tree.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/kartikbazzad/reactorcore/internal/config"
	"github.com/kartikbazzad/reactorcore/internal/engine"
	"github.com/kartikbazzad/reactorcore/internal/txn"
)

const prompt = "reactorcore> "

func main() {
	root := &cobra.Command{
		Use:   "reactorctl",
		Short: "Interactive shell for a reactorcore transactional engine",
	}

	var dataDir string
	var driver string
	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Open an interactive shell against a local engine instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.DataDir = dataDir
			cfg.Persist.Driver = driver
			cfg.Persist.SQLitePath = dataDir + "/reactorcore.db"
			return runShell(cfg)
		},
	}
	shellCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "data directory")
	shellCmd.Flags().StringVar(&driver, "driver", "memory", "persistence driver: memory|sqlite")
	root.AddCommand(shellCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type session struct {
	eng *engine.Engine
	tx  *txn.Tx
}

func runShell(cfg *config.Config) error {
	eng, err := engine.Open(cfg, nil)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer eng.Close()

	if err := eng.Catalog().CreateTable("docs"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\ninterrupted, exiting")
		os.Exit(0)
	}()

	fmt.Println("reactorcore shell. type .help for commands.")
	sess := &session{eng: eng}

	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err.Error() == "EOF" {
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if err := sess.dispatch(input); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func (s *session) dispatch(line string) error {
	fields := strings.SplitN(line, " ", 3)
	cmd := fields[0]

	switch cmd {
	case ".help":
		fmt.Println("commands: begin, get <id>, insert <json>, replace <id> <json>, delete <id>, commit, abort, exit")
		return nil
	case "exit", "quit":
		os.Exit(0)
		return nil
	case "begin":
		if s.tx != nil {
			return fmt.Errorf("transaction already open")
		}
		s.tx = s.eng.BeginTransaction()
		fmt.Printf("begin ts=%d\n", s.tx.BeginTs())
		return nil
	case "commit":
		if s.tx == nil {
			return fmt.Errorf("no open transaction")
		}
		err := s.eng.Commit(context.Background(), "docs", s.tx)
		s.tx = nil
		if err != nil {
			return err
		}
		fmt.Println("committed")
		return nil
	case "abort":
		if s.tx == nil {
			return fmt.Errorf("no open transaction")
		}
		s.tx.Abort()
		s.tx = nil
		fmt.Println("aborted")
		return nil
	case "get":
		if len(fields) < 2 {
			return fmt.Errorf("usage: get <id>")
		}
		return s.withTx(func(tx *txn.Tx) error {
			id, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return err
			}
			val, ok, err := tx.Get("docs", id)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("(not found)")
				return nil
			}
			fmt.Println(string(val))
			return nil
		})
	case "insert":
		if len(fields) < 2 {
			return fmt.Errorf("usage: insert <json>")
		}
		return s.withTx(func(tx *txn.Tx) error {
			id, err := tx.InsertAuto("docs", []byte(strings.Join(fields[1:], " ")))
			if err != nil {
				return err
			}
			fmt.Printf("inserted id=%d\n", id)
			return nil
		})
	case "replace":
		if len(fields) < 3 {
			return fmt.Errorf("usage: replace <id> <json>")
		}
		return s.withTx(func(tx *txn.Tx) error {
			id, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return err
			}
			return tx.Replace("docs", id, []byte(fields[2]))
		})
	case "delete":
		if len(fields) < 2 {
			return fmt.Errorf("usage: delete <id>")
		}
		return s.withTx(func(tx *txn.Tx) error {
			id, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return err
			}
			return tx.Delete("docs", id)
		})
	default:
		return fmt.Errorf("unknown command %q, type .help", cmd)
	}
}

// withTx runs fn against an implicit single-statement transaction if none
// is open, auto-committing it, or against the shell's explicit open
// transaction otherwise.
func (s *session) withTx(fn func(tx *txn.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	tx := s.eng.BeginTransaction()
	if err := fn(tx); err != nil {
		tx.Abort()
		return err
	}
	return s.eng.Commit(context.Background(), "docs", tx)
}
