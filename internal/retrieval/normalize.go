package retrieval

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/54b3r/scout-go/internal/rag"
)

// maxIndexedContexts bounds the "0".."9" probe for index-keyed payloads.
const maxIndexedContexts = 10

// accessorKeys are alternative collection fields, probed in order.
var accessorKeys = []string{"data", "getContexts", "retrievals", "retrieval_contexts"}

// Context wraps one retrieved item of unknown shape.
type Context struct {
	v gjson.Result
}

// Text returns the passage text.
func (c Context) Text() string {
	return firstString(c.v, "text", "chunk.text", "chunk.data", "content")
}

// SourceURI returns the source reference, falling back to file identifiers.
func (c Context) SourceURI() string {
	return firstString(c.v, "sourceUri", "source_uri", "uri", "ragFileId", "file_id")
}

// SourceDisplayName returns the human-readable source label, if any.
func (c Context) SourceDisplayName() string {
	return firstString(c.v, "sourceDisplayName", "source_display_name", "display_name")
}

// Score returns the relevance score or distance, or nil when absent.
func (c Context) Score() *float64 {
	for _, path := range []string{"score", "relevanceScore", "relevance_score", "distance"} {
		if r := c.v.Get(path); r.Exists() && (r.Type == gjson.Number || r.Type == gjson.String) {
			f := r.Float()
			return &f
		}
	}
	return nil
}

// toContext converts the wrapped item.
func (c Context) toContext() rag.RetrievedContext {
	return rag.RetrievedContext{
		Text:              c.Text(),
		SourceURI:         c.SourceURI(),
		SourceDisplayName: c.SourceDisplayName(),
		Score:             c.Score(),
	}
}

func firstString(v gjson.Result, paths ...string) string {
	for _, p := range paths {
		if r := v.Get(p); r.Exists() && r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// Normalize converts a raw retrieval payload into contexts. Shapes are
// probed in a fixed order: a single context carrying text, a nested
// contexts collection (array or single object), an accessor field, a bare
// array, and finally an object keyed "0".."9". A payload matching none of
// them, or one that cannot be parsed, yields an empty list and a warning.
// Items without text are dropped.
func Normalize(raw []byte, log *slog.Logger) (out []rag.RetrievedContext) {
	if log == nil {
		log = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn("retrieval: could not interpret response",
				slog.Any("error", fmt.Errorf("%w: %v", rag.ErrResponseShape, r)),
			)
			out = nil
		}
	}()

	if len(raw) == 0 {
		return nil
	}
	if !gjson.ValidBytes(raw) {
		log.Warn("retrieval: could not interpret response",
			slog.Any("error", fmt.Errorf("%w: invalid JSON", rag.ErrResponseShape)),
		)
		return nil
	}

	items, ok := probe(gjson.ParseBytes(raw))
	if !ok {
		log.Warn("retrieval: unrecognised response shape",
			slog.Any("error", rag.ErrResponseShape),
			slog.Int("bytes", len(raw)),
		)
		return nil
	}

	out = make([]rag.RetrievedContext, 0, len(items))
	for _, it := range items {
		c := Context{v: it}.toContext()
		if c.Text == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// probe locates the collection of context items in root.
func probe(root gjson.Result) ([]gjson.Result, bool) {
	c := root
	if inner := root.Get("contexts"); inner.Exists() {
		c = inner
	}

	if c.IsObject() && c.Get("text").Exists() {
		return []gjson.Result{c}, true
	}

	if nested := c.Get("contexts"); nested.Exists() {
		switch {
		case nested.IsArray():
			return nested.Array(), true
		case nested.IsObject():
			return []gjson.Result{nested}, true
		}
	}

	for _, key := range accessorKeys {
		for _, scope := range []gjson.Result{c, root} {
			if v := scope.Get(key); v.IsArray() {
				return v.Array(), true
			}
		}
	}

	if c.IsArray() {
		return c.Array(), true
	}

	if c.IsObject() {
		var items []gjson.Result
		for i := range maxIndexedContexts {
			v := c.Get(strconv.Itoa(i))
			if !v.Exists() {
				break
			}
			items = append(items, v)
		}
		if len(items) > 0 {
			return items, true
		}
	}

	// An empty contexts object is a valid "no results" answer.
	if c.IsObject() && len(c.Map()) == 0 {
		return nil, true
	}
	return nil, false
}
