package cmd

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"tribunal/internal/config"
	"tribunal/internal/report"
)

var (
	watchDocPath    string
	watchRubricPath string
)

var watchCmd = &cobra.Command{
	Use:   "watch <target>",
	Short: "Re-run the audit whenever the rubric or report document changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()

		if err := watcher.Add(watchRubricPath); err != nil {
			return err
		}
		if watchDocPath != "" {
			if err := watcher.Add(watchDocPath); err != nil {
				return err
			}
		}

		req := auditRequest{
			Target:     args[0],
			RubricPath: watchRubricPath,
			DocPath:    watchDocPath,
		}

		audit := func() {
			rep, err := executeAudit(cmd.Context(), cfg, req)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "audit failed: %v\n", err)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Summary(rep))
		}

		audit()
		fmt.Fprintln(cmd.OutOrStdout(), "watching for changes; press Ctrl+C to stop")

		// Editors fire bursts of events per save; coalesce them.
		var pending <-chan time.Time
		for {
			select {
			case <-cmd.Context().Done():
				return nil

			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				// Some editors replace the file on save, which drops the
				// watch; re-add the path.
				_ = watcher.Add(ev.Name)
				pending = time.After(300 * time.Millisecond)

			case <-pending:
				pending = nil
				audit()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchDocPath, "doc", "", "report document to cross-reference against the tree")
	watchCmd.Flags().StringVar(&watchRubricPath, "rubric", "rubric.yaml", "rubric file (YAML or JSON)")
}
