package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intentgate/internal/types"
)

var (
	resolveSession string
	resolveJSON    bool
)

// resolveCmd resolves a single utterance
var resolveCmd = &cobra.Command{
	Use:   "resolve [utterance]",
	Short: "Resolve one utterance and print the result",
	Long: `Runs one utterance through the full pipeline against the configured
registry and model, and prints the outcome.

Example:
  intentgate resolve "top 5 machines by energy this week"
  intentgate resolve --json "compressor status"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveSession, "session", "", "Session id (default: new session)")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print the raw result as JSON")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	utterance := joinArgs(args)
	logger.Debug("Resolving utterance", zap.String("input", utterance))
	res, err := a.resolver.Resolve(ctx, utterance, resolveSession)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	if resolveJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(cmd.OutOrStdout(), plainStyles(), res)
	return nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// printResult renders a result for a terminal.
func printResult(w io.Writer, st Styles, res types.Result) {
	switch res.Status {
	case types.StatusValid:
		fmt.Fprintln(w, st.Success.Render("✓ "+describeCommand(res.Command)))
		fmt.Fprintln(w, st.Muted.Render(fmt.Sprintf("  tier %s, confidence %.2f", res.SourceTier, res.Confidence)))
	case types.StatusNeedsClarification:
		fmt.Fprintln(w, st.Warning.Render("? "+res.Prompt))
		for i, c := range res.Candidates {
			fmt.Fprintf(w, "  %d. %s\n", i+1, c)
		}
	default:
		fmt.Fprintln(w, st.Error.Render("✗ "+res.Prompt))
		fmt.Fprintln(w, st.Muted.Render("  reason: "+string(res.Reason)))
	}
}

// describeCommand prints a command as KIND key=value ...
func describeCommand(c types.Command) string {
	if c == nil {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		return string(c.Kind())
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return string(c.Kind())
	}
	var b strings.Builder
	b.WriteString(string(c.Kind()))
	for _, k := range sortedKeys(fields) {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
