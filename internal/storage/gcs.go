package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

// GCSConfig holds the parameters for a Cloud Storage backed ObjectStore.
type GCSConfig struct {
	// Bucket is the default bucket for object names without a gs:// prefix.
	Bucket string

	// Options are passed to the API client (credentials, endpoint).
	Options []option.ClientOption

	// Logger receives upload progress. Defaults to slog.Default().
	Logger *slog.Logger
}

// GCS implements ObjectStore on the Cloud Storage JSON API.
type GCS struct {
	// svc is the generated Cloud Storage client.
	svc *gcs.Service

	// bucket is the default bucket.
	bucket string

	// log receives upload progress.
	log *slog.Logger
}

// NewGCS constructs a GCS object store.
func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket must not be empty")
	}
	svc, err := gcs.NewService(ctx, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("storage: create client: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &GCS{svc: svc, bucket: cfg.Bucket, log: log}, nil
}

// Bucket returns the default bucket name.
func (g *GCS) Bucket() string { return g.bucket }

// resolve maps an object name or gs:// reference to bucket and object.
func (g *GCS) resolve(name string) (string, string, error) {
	if strings.HasPrefix(name, Scheme) {
		return ParseRef(name)
	}
	return g.bucket, strings.TrimPrefix(name, "/"), nil
}

// List returns the references of every object under prefix.
// Directory placeholder objects (names ending in "/") are skipped.
func (g *GCS) List(ctx context.Context, prefix string) ([]string, error) {
	bucket, object, err := g.resolve(prefix)
	if err != nil {
		return nil, err
	}
	var refs []string
	err = g.svc.Objects.List(bucket).Prefix(object).Fields("nextPageToken", "items/name").
		Pages(ctx, func(page *gcs.Objects) error {
			for _, obj := range page.Items {
				if strings.HasSuffix(obj.Name, "/") {
					continue
				}
				refs = append(refs, URI(bucket, obj.Name))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("storage: list gs://%s/%s: %w", bucket, object, err)
	}
	return refs, nil
}

// Upload copies a local file to dest and returns its reference.
func (g *GCS) Upload(ctx context.Context, localPath, dest string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", localPath, err)
	}
	defer f.Close()

	bucket, object, err := g.resolve(dest)
	if err != nil {
		return "", err
	}
	ct := mime.TypeByExtension(filepath.Ext(localPath))
	if ct == "" {
		ct = "application/octet-stream"
	}
	_, err = g.svc.Objects.Insert(bucket, &gcs.Object{Name: object}).
		Media(f, googleapi.ContentType(ct)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", localPath, err)
	}
	ref := URI(bucket, object)
	g.log.Debug("storage: uploaded object", slog.String("ref", ref))
	return ref, nil
}

// UploadDir uploads every regular file under localDir to prefix.
// Hidden files are skipped. Upload stops at the first failure.
func (g *GCS) UploadDir(ctx context.Context, localDir, prefix string) ([]string, error) {
	var refs []string
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != localDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		ref, err := g.Upload(ctx, p, path.Join(prefix, filepath.ToSlash(rel)))
		if err != nil {
			return err
		}
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return refs, fmt.Errorf("storage: upload dir %s: %w", localDir, err)
	}
	g.log.Info("storage: uploaded directory",
		slog.String("dir", localDir),
		slog.Int("files", len(refs)),
	)
	return refs, nil
}

// Read returns the object's bytes or ErrNotExist.
func (g *GCS) Read(ctx context.Context, name string) ([]byte, error) {
	bucket, object, err := g.resolve(name)
	if err != nil {
		return nil, err
	}
	resp, err := g.svc.Objects.Get(bucket, object).Context(ctx).Download()
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("storage: read %s: %w", URI(bucket, object), err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s body: %w", URI(bucket, object), err)
	}
	return data, nil
}

// ReadJSON decodes the object into v.
func (g *GCS) ReadJSON(ctx context.Context, name string, v any) (bool, error) {
	data, err := g.Read(ctx, name)
	if errors.Is(err, ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("storage: decode %s: %w", name, err)
	}
	return true, nil
}

// WriteJSON encodes v and replaces the object.
func (g *GCS) WriteJSON(ctx context.Context, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", name, err)
	}
	bucket, object, err := g.resolve(name)
	if err != nil {
		return err
	}
	_, err = g.svc.Objects.Insert(bucket, &gcs.Object{Name: object}).
		Media(bytes.NewReader(data), googleapi.ContentType("application/json")).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", URI(bucket, object), err)
	}
	return nil
}

// Exists reports whether the object exists.
func (g *GCS) Exists(ctx context.Context, name string) (bool, error) {
	bucket, object, err := g.resolve(name)
	if err != nil {
		return false, err
	}
	_, err = g.svc.Objects.Get(bucket, object).Fields("name").Context(ctx).Do()
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", URI(bucket, object), err)
	}
	return true, nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (g *GCS) Delete(ctx context.Context, name string) error {
	bucket, object, err := g.resolve(name)
	if err != nil {
		return err
	}
	err = g.svc.Objects.Delete(bucket, object).Context(ctx).Do()
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("storage: delete %s: %w", URI(bucket, object), err)
	}
	return nil
}

// isNotFound reports whether err is a 404 from the API.
func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
