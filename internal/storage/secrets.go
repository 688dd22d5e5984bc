package storage

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Secret names holding R2 credentials.
const (
	SecretR2AccessKey = "r2-access-key"
	SecretR2SecretKey = "r2-secret-key"
	SecretR2Endpoint  = "r2-endpoint"
)

// LoadR2Credentials reads the latest R2 credential versions from Secret
// Manager in project.
func LoadR2Credentials(ctx context.Context, project string) (R2Credentials, error) {
	client, err := secretmanager.NewClient(ctx, googleCredentialOptions()...)
	if err != nil {
		return R2Credentials{}, fmt.Errorf("%w: secret manager: %v", ErrMissingCredentials, err)
	}
	defer client.Close()

	read := func(name string) (string, error) {
		resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
			Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", project, name),
		})
		if err != nil {
			return "", fmt.Errorf("%w: read secret %s: %v", ErrMissingCredentials, name, err)
		}
		return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
	}

	var creds R2Credentials
	if creds.AccessKey, err = read(SecretR2AccessKey); err != nil {
		return R2Credentials{}, err
	}
	if creds.SecretKey, err = read(SecretR2SecretKey); err != nil {
		return R2Credentials{}, err
	}
	if creds.Endpoint, err = read(SecretR2Endpoint); err != nil {
		return R2Credentials{}, err
	}
	return creds, nil
}
