// memscanctl is a minimal command-line front end for the memory scanning
// engine, standing in for the full CLI/GUI (out of scope per spec.md): it
// attaches to a pid and drives internal/enginecore.Engine directly,
// in-process, rather than through a network transport.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/memscan/engine/internal/api"
	"github.com/memscan/engine/internal/datatype"
	"github.com/memscan/engine/internal/enginecore"
	"github.com/memscan/engine/internal/planner"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var settingsDir string
	var pid int

	root := &cobra.Command{
		Use:   "memscanctl",
		Short: "Drive the memory scanning engine against an attached process",
	}
	root.PersistentFlags().IntVar(&pid, "pid", 0, "target process id (required)")
	root.PersistentFlags().StringVar(&settingsDir, "settings-dir", ".", "directory holding scan_settings.json/memory_settings.json")
	root.MarkPersistentFlagRequired("pid")

	withEngine := func(fn func(*enginecore.Engine) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			e, err := enginecore.New(pid, settingsDir, logrus.NewEntry(logrus.StandardLogger()))
			if err != nil {
				return err
			}
			defer e.Close()
			return fn(e)
		}
	}

	root.AddCommand(
		newScanNewCmd(withEngine),
		newCollectCmd(withEngine),
		newElementScanCmd(withEngine),
		newRegionsCmd(withEngine),
		newResultsCmd(withEngine),
		newShellCmd(withEngine),
	)
	return root
}

// newShellCmd opens an interactive session against one attached process:
// attach once, then repeatedly narrow the same snapshot, instead of
// re-attaching per invocation the way the single-shot subcommands do.
func newShellCmd(withEngine func(func(*enginecore.Engine) error) func(*cobra.Command, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Attach once and drive scan-new/element-scan/results interactively",
		RunE: withEngine(func(e *enginecore.Engine) error {
			rl, err := readline.New("memscan> ")
			if err != nil {
				return err
			}
			defer rl.Close()

			for {
				line, err := rl.Readline()
				if err != nil { // io.EOF on Ctrl-D, readline.ErrInterrupt on Ctrl-C
					return nil
				}
				if err := runShellLine(e, strings.TrimSpace(line)); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			}
		}),
	}
}

func runShellLine(e *enginecore.Engine, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "scan-new":
		return e.ScanNew()
	case "collect":
		task := e.ScanCollectValues(context.Background())
		waitForTask(task.ID, e)
		return nil
	case "scan": // scan <compare> <value> [types]
		if len(fields) < 3 {
			return fmt.Errorf("usage: scan <compare> <value> [comma-separated-types]")
		}
		types := string(datatype.I32)
		if len(fields) >= 4 {
			types = fields[3]
		}
		var refs []datatype.ID
		for _, t := range strings.Split(types, ",") {
			if t != "" {
				refs = append(refs, datatype.ID(t))
			}
		}
		constraint := planner.AnonymousConstraint{Compare: datatype.CompareType(fields[1]), Value: fields[2]}
		task, err := e.ElementScan(context.Background(), []planner.AnonymousConstraint{constraint}, refs)
		if err != nil {
			return err
		}
		waitForTask(task.ID, e)
		return printJSON(e.ScanResultsQuery(api.ScanResultsQueryRequest{}))
	case "results":
		return printJSON(e.ScanResultsQuery(api.ScanResultsQueryRequest{}))
	case "regions":
		return printJSON(e.MemoryRegions())
	default:
		return fmt.Errorf("unknown command %q (try scan-new, collect, scan, results, regions)", fields[0])
	}
}

func newScanNewCmd(withEngine func(func(*enginecore.Engine) error) func(*cobra.Command, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "scan-new",
		Short: "Build a baseline snapshot from settings-filtered pages",
		RunE: withEngine(func(e *enginecore.Engine) error {
			return e.ScanNew()
		}),
	}
}

func newCollectCmd(withEngine func(func(*enginecore.Engine) error) func(*cobra.Command, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Refresh the current snapshot's values",
		RunE: withEngine(func(e *enginecore.Engine) error {
			if err := e.ScanNew(); err != nil {
				return err
			}
			task := e.ScanCollectValues(context.Background())
			waitForTask(task.ID, e)
			return nil
		}),
	}
}

func newElementScanCmd(withEngine func(func(*enginecore.Engine) error) func(*cobra.Command, []string) error) *cobra.Command {
	var compare, value, types string
	cmd := &cobra.Command{
		Use:   "element-scan",
		Short: "Narrow the current snapshot by one constraint",
		RunE: withEngine(func(e *enginecore.Engine) error {
			constraint := planner.AnonymousConstraint{Compare: datatype.CompareType(compare), Value: value}
			var refs []datatype.ID
			for _, t := range strings.Split(types, ",") {
				if t != "" {
					refs = append(refs, datatype.ID(t))
				}
			}
			task, err := e.ElementScan(context.Background(), []planner.AnonymousConstraint{constraint}, refs)
			if err != nil {
				return err
			}
			waitForTask(task.ID, e)

			resp := e.ScanResultsQuery(api.ScanResultsQueryRequest{})
			return printJSON(resp)
		}),
	}
	cmd.Flags().StringVar(&compare, "compare", string(datatype.CompareEqual), "compare operator")
	cmd.Flags().StringVar(&value, "value", "", "anonymous value string")
	cmd.Flags().StringVar(&types, "types", string(datatype.I32), "comma-separated data type refs")
	return cmd
}

func newRegionsCmd(withEngine func(func(*enginecore.Engine) error) func(*cobra.Command, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List usermode memory regions",
		RunE: withEngine(func(e *enginecore.Engine) error {
			return printJSON(e.MemoryRegions())
		}),
	}
}

func newResultsCmd(withEngine func(func(*enginecore.Engine) error) func(*cobra.Command, []string) error) *cobra.Command {
	var pageIndex int
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Query the current page of scan results",
		RunE: withEngine(func(e *enginecore.Engine) error {
			return printJSON(e.ScanResultsQuery(api.ScanResultsQueryRequest{PageIndex: pageIndex}))
		}),
	}
	cmd.Flags().IntVar(&pageIndex, "page", 0, "result page index")
	return cmd
}

// waitForTask blocks until the background task unregisters itself, which
// enginecore does on completion, cancellation, or timeout. memscanctl is a
// synchronous CLI so it has no progress UI to drive off Task.OnProgress.
func waitForTask(id string, e *enginecore.Engine) {
	for {
		if _, ok := e.Tasks.Get(id); !ok {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
