package answer

import (
	"fmt"
	"strings"

	"github.com/54b3r/scout-go/internal/rag"
	"github.com/54b3r/scout-go/internal/storage"
)

// Citations renders a "Sources:" block listing each distinct source once,
// in first-seen order. Object-storage references are shown with a browser
// link. It returns "" when no context names a source.
func Citations(contexts []rag.RetrievedContext) string {
	seen := make(map[string]struct{})
	var lines []string
	for _, c := range contexts {
		src := c.SourceURI
		if src == "" {
			continue
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}

		label := c.SourceDisplayName
		if label == "" {
			label = storage.BaseName(src)
		}
		line := fmt.Sprintf("%d. %s", len(lines)+1, label)
		if strings.HasPrefix(src, storage.Scheme) {
			line += " (" + storage.ConsoleURL(src) + ")"
		} else if label != src {
			line += " (" + src + ")"
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return ""
	}
	return "Sources:\n" + strings.Join(lines, "\n")
}
