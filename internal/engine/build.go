package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/option"

	"github.com/54b3r/scout-go/internal/config"
	"github.com/54b3r/scout-go/internal/embedder"
	"github.com/54b3r/scout-go/internal/gcp"
	"github.com/54b3r/scout-go/internal/metrics"
	"github.com/54b3r/scout-go/internal/provider"
	"github.com/54b3r/scout-go/internal/rag"
	"github.com/54b3r/scout-go/internal/storage"
	"github.com/54b3r/scout-go/internal/store"
	"github.com/54b3r/scout-go/internal/tracking"
)

// BuildOptions tune New.
type BuildOptions struct {
	// Provider selects the manual-path chat model. Nil reads the environment.
	Provider *provider.Config

	// Registerer receives the engine metrics. Nil disables metrics.
	Registerer prometheus.Registerer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Built is an Engine together with the clients the server probes.
type Built struct {
	*Engine

	// Service is the corpus backend in use.
	Service rag.CorpusService
}

// New validates s and connects every client the engine needs. Optional
// pieces that fail to initialise (grounded generation, the local tracking
// fallback) are logged and left out.
func New(ctx context.Context, s config.Settings, opts BuildOptions) (*Built, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	var deps Deps
	fail := func(err error) (*Built, error) {
		for i := len(deps.Closers) - 1; i >= 0; i-- {
			_ = deps.Closers[i]()
		}
		return nil, err
	}

	clientOpts, err := gcp.ClientOptions(ctx, s.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	gcs, err := storage.NewGCS(ctx, storage.GCSConfig{Bucket: s.Bucket, Options: clientOpts, Logger: log})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	deps.Objects = gcs

	deps.Service, err = newService(ctx, s, gcs, clientOpts, &deps, log)
	if err != nil {
		return fail(err)
	}

	pcfg := opts.Provider
	if pcfg == nil {
		pcfg = provider.ConfigFromEnv()
		pcfg.Vertex.Project = s.ProjectID
		pcfg.Vertex.Location = s.Location
		pcfg.Vertex.Model = s.GenerativeModel
		pcfg.Tuning.Temperature = s.Temperature
	}
	deps.Chat, err = provider.New(ctx, pcfg)
	if err != nil {
		return fail(fmt.Errorf("engine: chat model: %w", err))
	}
	log.Info("engine: chat model initialised",
		slog.String("provider", string(pcfg.Backend)),
		slog.String("model", pcfg.ModelName()),
	)

	if s.CorpusBackend == config.BackendVertex {
		g, err := provider.NewGroundedGenerator(ctx, provider.GroundedConfig{
			Project:           s.ProjectID,
			Location:          s.Location,
			Model:             s.GenerativeModel,
			Temperature:       s.Temperature,
			TopK:              s.TopK,
			DistanceThreshold: s.DistanceThreshold,
		})
		if err != nil {
			log.Warn("engine: grounded generation unavailable", slog.Any("error", err))
		} else {
			deps.Grounded = g
		}
	}

	if s.UseCloudTracking {
		deps.Primary = tracking.NewObjectBackend(gcs, s.CloudTrackingPath, tracking.DefaultMetadataPath(s.CloudTrackingPath))
	}
	if s.LocalTrackingEnabled() {
		if db, err := openTrackingDB(s.TrackingDBPath); err != nil {
			log.Warn("engine: local tracking fallback unavailable", slog.Any("error", err))
		} else {
			deps.Fallback = db
			deps.Closers = append(deps.Closers, db.Close)
		}
	}

	var m *metrics.Engine
	if opts.Registerer != nil {
		m = metrics.New(opts.Registerer)
	}

	eng, err := Assemble(deps, Options{
		CorpusName:        s.CorpusName,
		EmbeddingModel:    s.EmbeddingModel,
		Prefixes:          s.DocumentPrefixes,
		Chunking:          rag.ChunkingConfig{Size: s.ChunkSize, Overlap: s.ChunkOverlap},
		BatchSize:         s.BatchSize,
		RequestsPerMinute: s.RequestsPerMinute,
		TopK:              s.TopK,
		DistanceThreshold: s.DistanceThreshold,
		UseReranking:      s.UseReranking,
		RerankerModel:     s.RerankerModel,
		MaxContextTokens:  s.MaxContextTokens,
		Metrics:           m,
		Logger:            log,
	})
	if err != nil {
		return fail(err)
	}
	log.Info("engine: ready",
		slog.String("corpus_backend", s.CorpusBackend),
		slog.String("corpus", s.CorpusName),
		slog.String("bucket", s.Bucket),
		slog.Bool("cloud_tracking", deps.Primary != nil),
		slog.Bool("local_tracking", deps.Fallback != nil),
		slog.Bool("grounded", deps.Grounded != nil),
	)
	return &Built{Engine: eng, Service: deps.Service}, nil
}

// newService connects the configured corpus backend.
func newService(ctx context.Context, s config.Settings, objects rag.ObjectReader, clientOpts []option.ClientOption, deps *Deps, log *slog.Logger) (rag.CorpusService, error) {
	switch s.CorpusBackend {
	case config.BackendVertex:
		svc, err := rag.NewVertexCorpusService(ctx, rag.VertexConfig{
			Project:  s.ProjectID,
			Location: s.Location,
			Options:  clientOpts,
			Logger:   log,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		return svc, nil

	case config.BackendQdrant:
		ecfg := embedder.Config{
			Provider:   s.Embedding.Provider,
			Model:      s.Embedding.Model,
			Dimensions: s.Embedding.Dimensions,
			APIKey:     s.Embedding.APIKey,
			Endpoint:   s.Embedding.Endpoint,
			Project:    s.ProjectID,
			Location:   s.Location,
		}
		if err := embedder.Validate(ecfg, log); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		emb, err := embedder.New(ctx, ecfg)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		svc, err := rag.NewQdrantCorpusService(&rag.QdrantConfig{
			Host:       s.Qdrant.Host,
			Port:       s.Qdrant.Port,
			VectorSize: uint64(embedder.DefaultDimensions(ecfg)),
			APIKey:     s.Qdrant.APIKey,
			UseTLS:     s.Qdrant.TLS,
			Embedder:   emb,
			Objects:    objects,
			Logger:     log,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		deps.Closers = append(deps.Closers, svc.Close)
		return svc, nil

	default:
		return nil, &config.ConfigurationError{Field: "CORPUS_BACKEND", Reason: fmt.Sprintf("unknown backend %q", s.CorpusBackend)}
	}
}

// openTrackingDB opens the SQLite fallback at path, or the default location
// when path is empty.
func openTrackingDB(path string) (*store.SQLiteStore, error) {
	if path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return store.Open(path)
}
