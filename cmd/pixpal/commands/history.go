package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/mirubo/pixpal/pkg/cli"
	"github.com/mirubo/pixpal/pkg/history"
)

var (
	histContext string
	histJQ      string
	histJSON    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse archived conversations",
	Long: `Browse the conversation archive written by chat and serve.

Requires history_dir to be configured in the context's engine.yaml.

Examples:
  pixpal history list
  pixpal history show kitchen-robot
  pixpal history show kitchen-robot --jq '.[] | select(.role == "user") | .parts[0].text'
  pixpal history drop kitchen-robot`,
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List archived conversation ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := requireArchive()
		if err != nil {
			return err
		}
		defer archive.Close()

		ids, err := archive.Conversations(cmd.Context())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No archived conversations.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CONVERSATION\tTURNS\tLAST ACTIVITY")
		for _, id := range ids {
			records, err := archive.Records(cmd.Context(), id)
			if err != nil {
				return err
			}
			last := ""
			if n := len(records); n > 0 {
				last = records[n-1].At.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", id, len(records), last)
		}
		w.Flush()
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <conversation>",
	Short: "Show the turns of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := requireArchive()
		if err != nil {
			return err
		}
		defer archive.Close()

		records, err := archive.Records(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("conversation %q not found", args[0])
		}

		if histJQ != "" {
			return filterRecords(records, histJQ)
		}

		format := cli.FormatYAML
		if histJSON {
			format = cli.FormatJSON
		}
		return cli.Output(records, cli.OutputOptions{Format: format})
	},
}

var historyDropCmd = &cobra.Command{
	Use:   "drop <conversation>",
	Short: "Delete a conversation from the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := requireArchive()
		if err != nil {
			return err
		}
		defer archive.Close()

		if err := archive.Drop(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Conversation %q dropped.", args[0])
		return nil
	},
}

// requireArchive opens the archive of the selected context and fails
// when the context does not configure one.
func requireArchive() (*history.Archive, error) {
	svc, err := loadServiceConfig(histContext)
	if err != nil {
		return nil, err
	}
	archive, err := openArchive(svc)
	if err != nil {
		return nil, err
	}
	if archive == nil {
		return nil, fmt.Errorf("no history_dir configured; run: pixpal config set <context> engine history_dir <path>")
	}
	return archive, nil
}

// filterRecords runs a jq expression over the JSON rendering of the
// records and prints every result on its own line.
func filterRecords(records []*history.Record, expr string) error {
	query, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}

	// gojq operates on untyped JSON values.
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return err
	}

	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("jq: %w", err)
		}
		if s, isStr := v.(string); isStr {
			fmt.Println(s)
			continue
		}
		out, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
	return nil
}

func init() {
	historyCmd.PersistentFlags().StringVarP(&histContext, "context", "c", "", "context name to use")
	historyShowCmd.Flags().StringVar(&histJQ, "jq", "", "jq expression applied to the JSON-rendered records")
	historyShowCmd.Flags().BoolVar(&histJSON, "json", false, "output as JSON (for piping)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDropCmd)

	rootCmd.AddCommand(historyCmd)
}
