// Command dreammem is a CLI for the DreamMem memory store: it saves and
// searches memories, records feedback, and runs consolidation cycles.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/metacoglab/dreammem-go/pkg/core"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "dreammem",
		Short: "Memory store and consolidation engine for conversational agents",
		Long: `dreammem manages an agent's long-term memory: categorized records,
hybrid semantic and keyword search, user feedback, and "dreaming"
consolidation cycles that distill accumulated memories into insights.

Configuration is read from the environment (or a .env file); pass
--config to load a JSON or YAML file instead.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON or YAML config file")

	rootCmd.AddCommand(newSaveCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newFeedbackCmd())
	rootCmd.AddCommand(newDreamCmd())
	rootCmd.AddCommand(newStatsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newMemoryClient() (*core.Client, error) {
	var cfg *core.Config
	var err error

	switch {
	case configPath == "":
		cfg, err = core.LoadConfigFromEnv()
	case strings.HasSuffix(configPath, ".yaml"), strings.HasSuffix(configPath, ".yml"):
		cfg, err = core.LoadConfigFromYAML(configPath)
	default:
		cfg, err = core.LoadConfigFromJSON(configPath)
	}
	if err != nil {
		return nil, err
	}
	return core.NewClient(cfg)
}

func newSaveCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "save <content>",
		Short: "Save a memory record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newMemoryClient()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			record, err := client.Save(context.Background(), args[0],
				core.WithCategory(core.Category(category)),
			)
			if err != nil {
				return err
			}

			fmt.Printf("saved record %d [%s]\n", record.ID, record.Category)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", string(core.CategoryConversational),
		"record category (conversational, self-observation, exchange)")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var limit int
	var includeSelfObservation bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memories by meaning and keywords",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newMemoryClient()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			opts := []core.SearchOption{}
			if limit > 0 {
				opts = append(opts, core.WithLimit(limit))
			}
			if includeSelfObservation {
				opts = append(opts, core.WithSelfObservation())
			}

			records, err := client.Search(context.Background(), args[0], opts...)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Println("no matching memories")
				return nil
			}
			for _, record := range records {
				fmt.Printf("%.3f  [%s]  %s\n", record.Score, record.Category, record.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results")
	cmd.Flags().BoolVar(&includeSelfObservation, "self-observation", false, "include self-observation records")
	return cmd
}

func newFeedbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <content>",
		Short: "Record a correction for the next consolidation cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newMemoryClient()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			item, err := client.SaveFeedback(context.Background(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("feedback recorded: %s\n", item.ID)
			return nil
		},
	}
}

func newDreamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dream",
		Short: "Run one consolidation cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newMemoryClient()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			result, err := client.Consolidate(context.Background())
			if err != nil {
				return err
			}

			if result.Skipped {
				fmt.Println("nothing to consolidate")
				return nil
			}
			fmt.Printf("consolidated %d memories into %d insights (%d archived, %s)\n",
				result.MemoriesProcessed, len(result.Insights), result.RecordsArchived, result.Duration.Round(0))
			for _, insight := range result.Insights {
				fmt.Printf("  %s\n", insight)
			}
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newMemoryClient()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			stats, err := client.Stats(context.Background())
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("active records:      %d\n", stats.ActiveRecords)
			fmt.Printf("pending feedback:    %d\n", stats.PendingFeedback)
			fmt.Printf("threshold:           %d\n", stats.ConsolidationThreshold)
			fmt.Printf("consolidation due:   %v\n", stats.ConsolidationDue)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
