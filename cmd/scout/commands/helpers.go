package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/scout-go/internal/config"
	"github.com/54b3r/scout-go/internal/engine"
	"github.com/54b3r/scout-go/internal/rag"
)

// openEngine builds the engine from the environment. The caller must Close it.
func openEngine(cmd *cobra.Command, reg prometheus.Registerer) (*engine.Built, config.Settings, error) {
	s := config.FromEnv()
	eng, err := engine.New(cmd.Context(), s, engine.BuildOptions{
		Registerer: reg,
		Logger:     slog.Default(),
	})
	if err != nil {
		return nil, s, fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	return eng, s, nil
}

// closeEngine closes eng and logs any failure.
func closeEngine(eng *engine.Built) {
	if err := eng.Close(); err != nil {
		slog.Warn("engine close failed", slog.Any("error", err))
	}
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printContexts writes contexts as a numbered list with their sources.
func printContexts(w io.Writer, contexts []rag.RetrievedContext) {
	if len(contexts) == 0 {
		fmt.Fprintln(w, "No contexts retrieved.")
		return
	}
	for i, c := range contexts {
		src := c.SourceDisplayName
		if src == "" {
			src = c.SourceURI
		}
		header := fmt.Sprintf("[%d] %s", i+1, src)
		if c.Score != nil {
			header += fmt.Sprintf(" (score %.3f)", *c.Score)
		}
		fmt.Fprintln(w, header)
		fmt.Fprintln(w, indent(strings.TrimSpace(c.Text), "    "))
		fmt.Fprintln(w)
	}
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
