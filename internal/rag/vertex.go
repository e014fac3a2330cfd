package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// VertexConfig holds the parameters for the Vertex AI RAG Engine backend.
type VertexConfig struct {
	// Project is the Google Cloud project ID.
	Project string

	// Location is the Vertex AI region (e.g. us-central1).
	Location string

	// Options are passed to the API client (credentials, endpoint).
	Options []option.ClientOption

	// OperationTimeout bounds how long long-running operations are polled.
	// Defaults to 30 minutes.
	OperationTimeout time.Duration

	// PollInterval is the initial polling interval. Defaults to 2s.
	PollInterval time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// VertexCorpusService implements CorpusService on the Vertex AI RAG Engine
// REST API.
type VertexCorpusService struct {
	svc    *aiplatform.Service
	parent string
	cfg    VertexConfig
	log    *slog.Logger
}

// NewVertexCorpusService constructs the Vertex AI backend.
func NewVertexCorpusService(ctx context.Context, cfg VertexConfig) (*VertexCorpusService, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("vertex: project must not be empty")
	}
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 30 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	opts := append([]option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("https://%s-aiplatform.googleapis.com/", cfg.Location)),
	}, cfg.Options...)

	svc, err := aiplatform.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vertex: create client: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &VertexCorpusService{
		svc:    svc,
		parent: fmt.Sprintf("projects/%s/locations/%s", cfg.Project, cfg.Location),
		cfg:    cfg,
		log:    log,
	}, nil
}

// ListCorpora pages through every corpus in the location.
func (v *VertexCorpusService) ListCorpora(ctx context.Context) ([]Corpus, error) {
	var out []Corpus
	err := v.svc.Projects.Locations.RagCorpora.List(v.parent).PageSize(100).
		Pages(ctx, func(page *aiplatform.GoogleCloudAiplatformV1ListRagCorporaResponse) error {
			for _, c := range page.RagCorpora {
				out = append(out, Corpus{ID: c.Name, DisplayName: c.DisplayName})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("vertex: list corpora: %w", err)
	}
	return out, nil
}

// CreateCorpus creates a corpus and waits for the operation to finish.
func (v *VertexCorpusService) CreateCorpus(ctx context.Context, spec CorpusSpec) (Corpus, error) {
	body := &aiplatform.GoogleCloudAiplatformV1RagCorpus{
		DisplayName: spec.DisplayName,
		Description: spec.Description,
	}
	if spec.EmbeddingModel != "" {
		body.VectorDbConfig = &aiplatform.GoogleCloudAiplatformV1RagVectorDbConfig{
			RagEmbeddingModelConfig: &aiplatform.GoogleCloudAiplatformV1RagEmbeddingModelConfig{
				VertexPredictionEndpoint: &aiplatform.GoogleCloudAiplatformV1RagEmbeddingModelConfigVertexPredictionEndpoint{
					Endpoint: v.modelEndpoint(spec.EmbeddingModel),
				},
			},
		}
	}

	op, err := v.svc.Projects.Locations.RagCorpora.Create(v.parent, body).Context(ctx).Do()
	if err != nil {
		return Corpus{}, fmt.Errorf("vertex: create corpus %q: %w", spec.DisplayName, err)
	}
	op, err = v.waitOperation(ctx, op)
	if err != nil {
		return Corpus{}, fmt.Errorf("vertex: create corpus %q: %w", spec.DisplayName, err)
	}

	var created aiplatform.GoogleCloudAiplatformV1RagCorpus
	if len(op.Response) > 0 {
		if err := json.Unmarshal(op.Response, &created); err != nil {
			return Corpus{}, fmt.Errorf("vertex: decode created corpus: %w: %w", ErrResponseShape, err)
		}
	}
	if created.Name == "" {
		return Corpus{}, fmt.Errorf("vertex: create corpus %q: operation returned no corpus: %w", spec.DisplayName, ErrResponseShape)
	}
	v.log.Info("vertex: created corpus",
		slog.String("corpus_id", created.Name),
		slog.String("display_name", created.DisplayName),
	)
	return Corpus{ID: created.Name, DisplayName: created.DisplayName}, nil
}

// DeleteCorpus force-deletes the corpus with its files.
func (v *VertexCorpusService) DeleteCorpus(ctx context.Context, corpusID string) error {
	op, err := v.svc.Projects.Locations.RagCorpora.Delete(corpusID).Force(true).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("vertex: delete corpus %s: %w", corpusID, err)
	}
	if _, err := v.waitOperation(ctx, op); err != nil {
		return fmt.Errorf("vertex: delete corpus %s: %w", corpusID, err)
	}
	return nil
}

// ImportFiles submits one import batch. The v1 API has no per-file metadata,
// so a request carrying metadata is rejected with ErrUnsupportedArgument
// before anything is sent.
func (v *VertexCorpusService) ImportFiles(ctx context.Context, corpusID string, req ImportRequest) (ImportHandle, error) {
	if len(req.Metadata) > 0 {
		return nil, fmt.Errorf("vertex: per-file metadata on import: %w", ErrUnsupportedArgument)
	}

	cfg := &aiplatform.GoogleCloudAiplatformV1ImportRagFilesConfig{
		GcsSource: &aiplatform.GoogleCloudAiplatformV1GcsSource{Uris: req.Refs},
	}
	if req.Chunking.Size > 0 {
		cfg.RagFileTransformationConfig = &aiplatform.GoogleCloudAiplatformV1RagFileTransformationConfig{
			RagFileChunkingConfig: &aiplatform.GoogleCloudAiplatformV1RagFileChunkingConfig{
				FixedLengthChunking: &aiplatform.GoogleCloudAiplatformV1RagFileChunkingConfigFixedLengthChunking{
					ChunkSize:    int64(req.Chunking.Size),
					ChunkOverlap: int64(req.Chunking.Overlap),
				},
			},
		}
	}

	op, err := v.svc.Projects.Locations.RagCorpora.RagFiles.Import(corpusID,
		&aiplatform.GoogleCloudAiplatformV1ImportRagFilesRequest{ImportRagFilesConfig: cfg}).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("vertex: import %d files: %w", len(req.Refs), err)
	}
	if op.Done && op.Error != nil {
		return nil, fmt.Errorf("vertex: import %d files: %w", len(req.Refs), operationError(op.Error))
	}
	return &vertexImport{svc: v, op: op}, nil
}

// ListFiles pages through the files of a corpus.
func (v *VertexCorpusService) ListFiles(ctx context.Context, corpusID string) ([]FileInfo, error) {
	var out []FileInfo
	err := v.svc.Projects.Locations.RagCorpora.RagFiles.List(corpusID).PageSize(100).
		Pages(ctx, func(page *aiplatform.GoogleCloudAiplatformV1ListRagFilesResponse) error {
			for _, f := range page.RagFiles {
				info := FileInfo{ID: f.Name, DisplayName: f.DisplayName}
				if f.GcsSource != nil && len(f.GcsSource.Uris) > 0 {
					info.SourceURI = f.GcsSource.Uris[0]
				}
				if f.FileStatus != nil {
					info.State = f.FileStatus.State
				}
				out = append(out, info)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("vertex: list files of %s: %w", corpusID, err)
	}
	return out, nil
}

// Retrieve queries the corpus and returns the JSON-encoded response.
func (v *VertexCorpusService) Retrieve(ctx context.Context, req RetrievalRequest) (json.RawMessage, error) {
	retrieval := &aiplatform.GoogleCloudAiplatformV1RagRetrievalConfig{TopK: int64(req.TopK)}
	if req.DistanceThreshold > 0 {
		retrieval.Filter = &aiplatform.GoogleCloudAiplatformV1RagRetrievalConfigFilter{
			VectorDistanceThreshold: req.DistanceThreshold,
		}
	}
	if req.RerankerModel != "" {
		retrieval.Ranking = &aiplatform.GoogleCloudAiplatformV1RagRetrievalConfigRanking{
			LlmRanker: &aiplatform.GoogleCloudAiplatformV1RagRetrievalConfigRankingLlmRanker{
				ModelName: req.RerankerModel,
			},
		}
	}

	resp, err := v.svc.Projects.Locations.RetrieveContexts(v.parent,
		&aiplatform.GoogleCloudAiplatformV1RetrieveContextsRequest{
			Query: &aiplatform.GoogleCloudAiplatformV1RagQuery{
				Text:               req.Query,
				RagRetrievalConfig: retrieval,
			},
			VertexRagStore: &aiplatform.GoogleCloudAiplatformV1RetrieveContextsRequestVertexRagStore{
				RagResources: []*aiplatform.GoogleCloudAiplatformV1RetrieveContextsRequestVertexRagStoreRagResource{
					{RagCorpus: req.CorpusID},
				},
			},
		}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("vertex: retrieve contexts: %w", err)
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("vertex: encode response: %w", err)
	}
	return raw, nil
}

// modelEndpoint expands a bare publisher model name into its endpoint path.
func (v *VertexCorpusService) modelEndpoint(model string) string {
	return fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", v.cfg.Project, v.cfg.Location, model)
}

// waitOperation polls a long-running operation with exponential backoff
// until it completes, the timeout elapses, or ctx is done.
func (v *VertexCorpusService) waitOperation(ctx context.Context, op *aiplatform.GoogleLongrunningOperation) (*aiplatform.GoogleLongrunningOperation, error) {
	if op.Done {
		if op.Error != nil {
			return op, operationError(op.Error)
		}
		return op, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = v.cfg.PollInterval
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = v.cfg.OperationTimeout

	current := op
	poll := func() error {
		got, err := v.svc.Projects.Locations.Operations.Get(op.Name).Context(ctx).Do()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("poll operation %s: %w", op.Name, err))
		}
		current = got
		if !got.Done {
			return fmt.Errorf("operation %s still running", op.Name)
		}
		if got.Error != nil {
			return backoff.Permanent(operationError(got.Error))
		}
		return nil
	}
	notify := func(_ error, wait time.Duration) {
		v.log.Debug("vertex: operation pending",
			slog.String("operation", op.Name),
			slog.Duration("next_poll", wait),
		)
	}
	if err := backoff.RetryNotify(poll, backoff.WithContext(b, ctx), notify); err != nil {
		return current, err
	}
	return current, nil
}

// operationError converts an operation's embedded status into a gRPC status
// error so the shared classifiers recognise its code.
func operationError(st *aiplatform.GoogleRpcStatus) error {
	return status.Error(codes.Code(st.Code), st.Message)
}

// vertexImport tracks an asynchronous import operation.
type vertexImport struct {
	svc *VertexCorpusService
	op  *aiplatform.GoogleLongrunningOperation
}

func (i *vertexImport) Name() string { return i.op.Name }

func (i *vertexImport) Wait(ctx context.Context) error {
	_, err := i.svc.waitOperation(ctx, i.op)
	return err
}
