// Package gcp resolves Google Cloud credentials shared by the storage and
// corpus service clients.
package gcp

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// CloudPlatformScope grants access to Cloud Storage and Vertex AI.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// TokenSource returns a token source for the cloud-platform scope.
// When credentialsFile is set the service-account key at that path is used,
// otherwise Application Default Credentials are resolved.
func TokenSource(ctx context.Context, credentialsFile string) (oauth2.TokenSource, error) {
	if credentialsFile != "" {
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("gcp: read credentials %s: %w", credentialsFile, err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("gcp: parse credentials %s: %w", credentialsFile, err)
		}
		return creds.TokenSource, nil
	}

	creds, err := google.FindDefaultCredentials(ctx, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("gcp: application default credentials: %w", err)
	}
	return creds.TokenSource, nil
}

// ClientOptions returns the API client options for the resolved credentials.
func ClientOptions(ctx context.Context, credentialsFile string) ([]option.ClientOption, error) {
	ts, err := TokenSource(ctx, credentialsFile)
	if err != nil {
		return nil, err
	}
	return []option.ClientOption{option.WithTokenSource(ts)}, nil
}
