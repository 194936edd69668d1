package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jake-bladt/automerge/host"
	"github.com/jake-bladt/automerge/rdx"
	"github.com/jake-bladt/automerge/utils"
)

var (
	replicaDir string
	actor      string
	verbose    bool
	format     string

	rootCmd = &cobra.Command{
		Use:   "automerge",
		Short: "Edit and merge replicated documents kept on disk",
		Long: `automerge keeps a replicated JSON-like document in a local
directory. Replicas edit independently and merge each other's changes.`,
		SilenceUsage: true,
	}

	replCmd = &cobra.Command{
		Use:   "repl",
		Short: "Interactive shell over the replica",
		Args:  cobra.NoArgs,
		RunE:  runREPL,
	}

	showCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the document as YAML or JSON",
		Args:  cobra.NoArgs,
		RunE:  runShow,
	}

	setCmd = &cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a field; the value is parsed as YAML",
		Args:  cobra.ExactArgs(2),
		RunE:  runSet,
	}

	mergeCmd = &cobra.Command{
		Use:   "merge [dir or saved file...]",
		Short: "Merge other replicas or saved documents into this one",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMerge,
	}

	saveCmd = &cobra.Command{
		Use:   "save [file]",
		Short: "Write the whole history to a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runSave,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&replicaDir, "dir", "d", "automerge.db", "replica directory")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "actor id for a new replica")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	showCmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(replCmd, showCmd, setCmd, mergeCmd, saveCmd)
}

func openReplica(dir string, actor rdx.ActorID) (*host.Replica, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return host.Open(dir, host.Options{
		Actor:     actor,
		Logger:    utils.NewDefaultLogger(level).Named("cli"),
		WriteSync: true,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
