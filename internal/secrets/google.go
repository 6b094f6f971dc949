// File: internal/secrets/google.go
package secrets

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// GoogleProvider resolves secrets from Google Secret Manager.
type GoogleProvider struct {
	client  *secretmanager.Client
	project string
}

// NewGoogleProvider creates a Secret Manager backed provider. credentialsFile
// may be empty, in which case application-default credentials apply.
func NewGoogleProvider(ctx context.Context, project, credentialsFile string) (*GoogleProvider, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	return &GoogleProvider{client: client, project: project}, nil
}

// GetSecret implements Provider, always reading the latest secret version.
func (p *GoogleProvider) GetSecret(ctx context.Context, name string) (string, error) {
	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", p.project, name)
	resp, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resource,
	})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") {
			return "", fmt.Errorf("%w: %s", ErrNotFound, resource)
		}
		return "", fmt.Errorf("failed to access secret %s: %w", resource, err)
	}
	return string(resp.GetPayload().GetData()), nil
}

// Close releases the underlying client connection.
func (p *GoogleProvider) Close() error {
	return p.client.Close()
}

var _ Provider = (*GoogleProvider)(nil)
