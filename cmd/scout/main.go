// Command scout is the entry point for the scout research corpus engine.
// It keeps a managed RAG corpus in sync with documents in object storage
// and answers questions from it, via a Cobra CLI or an HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/54b3r/scout-go/cmd/scout/commands"
)

func main() {
	if err := commands.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
