// Package audit records CLI command invocations: the command, the config
// file it resolved and the operational environment. Secret variables are
// recorded as "set" or "unset", never their values.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// auditEntry defines an env var to include in the audit log.
type auditEntry struct {
	key    string
	secret bool
}

// auditKeys is the ordered list of env vars included in every audit entry.
var auditKeys = []auditEntry{
	{"GOOGLE_CLOUD_PROJECT", false},
	{"GOOGLE_CLOUD_LOCATION", false},
	{"GOOGLE_APPLICATION_CREDENTIALS", false},
	{"CORPUS_BACKEND", false},
	{"RAG_CORPUS_NAME", false},
	{"RAG_EMBEDDING_MODEL", false},
	{"RAG_GENERATIVE_MODEL", false},
	{"RAG_TOP_K", false},
	{"RAG_DISTANCE_THRESHOLD", false},
	{"RAG_USE_RERANKING", false},
	{"RAG_RERANKER_MODEL", false},
	{"GCS_BUCKET", false},
	{"DOCUMENT_PREFIXES", false},
	{"USE_CLOUD_TRACKING", false},
	{"CLOUD_TRACKING_PATH", false},
	{"SCOUT_TRACKING_DB", false},
	{"RAG_BATCH_SIZE", false},
	{"RAG_IMPORT_RPM", false},
	{"MODEL_PROVIDER", false},
	{"OLLAMA_HOST", false},
	{"OPENAI_API_KEY", true},
	{"AZURE_OPENAI_API_KEY", true},
	{"AZURE_OPENAI_ENDPOINT", false},
	{"GOOGLE_API_KEY", true},
	{"ARK_API_KEY", true},
	{"EMBEDDING_PROVIDER", false},
	{"EMBEDDING_API_KEY", true},
	{"QDRANT_HOST", false},
	{"QDRANT_API_KEY", true},
	{"SCOUT_API_KEY", true},
	{"LOG_LEVEL", false},
	{"LANGFUSE_PUBLIC_KEY", true},
	{"LANGFUSE_SECRET_KEY", true},
}

var secretKeys = func() map[string]bool {
	m := make(map[string]bool)
	for _, e := range auditKeys {
		if e.secret {
			m[e.key] = true
		}
	}
	return m
}()

// LogCommandStart emits an audit entry when a CLI command begins.
func LogCommandStart(ctx context.Context, log *slog.Logger, command, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditKeys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", redactHome(configPath)),
	)
	for _, e := range auditKeys {
		attrs = append(attrs, slog.String(e.key, SanitiseKey(e.key, os.Getenv(e.key))))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// LogCommandEnd emits an audit entry when a CLI command finishes.
func LogCommandEnd(ctx context.Context, log *slog.Logger, command string, started time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.Duration("duration", time.Since(started)),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("outcome", "error"), slog.Any("error", err))
	} else {
		attrs = append(attrs, slog.String("outcome", "ok"))
	}
	log.LogAttrs(ctx, level, "audit: command end", attrs...)
}

// SanitiseKey returns "set" or "unset" for secret keys, or the value
// (home-relative for paths) for the rest.
func SanitiseKey(key, value string) string {
	if secretKeys[key] {
		return presence(value)
	}
	if value == "" {
		return "unset"
	}
	return redactHome(value)
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// redactHome rewrites a path under the home directory as ~/..., and an
// empty path as "none".
func redactHome(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(p, home+string(os.PathSeparator)) {
		return "~" + p[len(home):]
	}
	return p
}
