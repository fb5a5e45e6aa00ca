// Package registry authenticates against the container registry and drives
// image build and push.
package registry

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/pkg/errors"
)

// ECRClient is the subset of the ECR API we use
type ECRClient interface {
	GetAuthorizationTokenWithContext(aws.Context, *ecr.GetAuthorizationTokenInput, ...request.Option) (*ecr.GetAuthorizationTokenOutput, error)
}

// Credentials is a username/password pair for one registry host
type Credentials struct {
	Registry string
	Username string
	Password string
}

// NewECRClient constructs a real ECR client for a region
func NewECRClient(region string) ECRClient {
	sess := session.Must(session.NewSession(&aws.Config{Region: aws.String(region)}))
	return ecr.New(sess)
}

// Login fetches registry credentials from the ECR API. Tokens stay valid
// for 12 hours; a pipeline run is far shorter, so no refresh logic here.
func Login(ctx context.Context, client ECRClient, registryIDs []string) ([]Credentials, error) {
	input := &ecr.GetAuthorizationTokenInput{}
	if len(registryIDs) > 0 {
		input.RegistryIds = aws.StringSlice(registryIDs)
	}

	token, err := client.GetAuthorizationTokenWithContext(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "fetching ECR authorization token")
	}

	var creds []Credentials
	for _, data := range token.AuthorizationData {
		host := strings.TrimPrefix(aws.StringValue(data.ProxyEndpoint), "https://")
		username, password, err := parseAuth(aws.StringValue(data.AuthorizationToken))
		if err != nil {
			return nil, err
		}
		creds = append(creds, Credentials{
			Registry: host,
			Username: username,
			Password: password,
		})
	}

	if len(creds) == 0 {
		return nil, errors.New("ECR returned no authorization data")
	}
	return creds, nil
}

// parseAuth decodes the base64 user:password token the registry API returns
func parseAuth(token string) (string, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", errors.Wrap(err, "decoding registry token")
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", errors.New("registry token is not a user:password pair")
	}
	return parts[0], parts[1], nil
}
