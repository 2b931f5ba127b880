package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"bestcity-api/internal/app"
	"bestcity-api/internal/config"
	"bestcity-api/internal/logging"
	"bestcity-api/internal/metrics"
	"bestcity-api/internal/model"
	"bestcity-api/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger     *logging.Logger
	cfg        config.Config
	configPath string

	noteTitle   string
	noteContent string
)

var rootCmd = &cobra.Command{
	Use:   "bestcity",
	Short: "bestcity-api - notes service with metrics and structured logging",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = app.NewLogger(cfg)
		return err
	},
	SilenceUsage: true,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the notes API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to start", zap.Error(err))
			return err
		}
		return a.Run(ctx)
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a note directly in the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		note := model.NewNote(noteTitle, noteContent)
		if err := note.Validate(); err != nil {
			return err
		}

		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			if err := st.Create(ctx, &note); err != nil {
				return err
			}
			logger.Info("Note created", zap.String("id", note.ID.Hex()), zap.String("title", note.Title))
			fmt.Fprintln(cmd.OutOrStdout(), note.ID.Hex())
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every note, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			notes, err := st.List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tTITLE")
			for _, n := range notes {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", n.ID.Hex(), n.CreatedAt.Format(time.RFC3339), n.Title)
			}
			return tw.Flush()
		})
	},
}

// withStore opens the store in client mode: the hybrid backend skips Badger so
// a running server keeps its directory lock.
func withStore(ctx context.Context, fn func(context.Context, store.Store) error) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	st, _, err := app.OpenStore(ctx, cfg, metrics.New(logger.Logger), logger.Logger, false)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())
	return fn(ctx, st)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file; environment variables override it")

	addCmd.Flags().StringVar(&noteTitle, "title", "", "Note title")
	addCmd.Flags().StringVar(&noteContent, "content", "", "Note content")
	_ = addCmd.MarkFlagRequired("title")
	_ = addCmd.MarkFlagRequired("content")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
}

// execute runs the command line and closes the logger afterwards whether or
// not the command failed. cobra skips post-run hooks on error.
func execute(args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Close()
		logger = nil
	}
	return err
}

func main() {
	if err := execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
