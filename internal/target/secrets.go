package target

import (
	"context"
	"fmt"
	"regexp"
)

// Connection is the public (non-secret) half of an EventBridge connection
// resource: auth type plus the secret's location. Grounded on
// api_destination_target.py's events-store Connection model, which strips
// actual secret values out to SecretsManager.
type Connection struct {
	AuthorizationType string // API_KEY | BASIC | OAUTH_CLIENT_CREDENTIALS
	SecretArn         string
}

// ConnectionResolver looks up a connection's public parameters by ARN. This
// is the first of the two hops api_destination_target.py makes before it can
// apply auth headers.
type ConnectionResolver interface {
	ResolveConnection(ctx context.Context, connectionArn string) (*Connection, error)
}

// AuthSecret is the actual auth material for one connection, fetched from
// the second hop (Vault in this service, SecretsManager in the original).
type AuthSecret struct {
	ApiKeyName  string
	ApiKeyValue string
	Username    string
	Password    string
}

// SecretsClient fetches the auth secret stored at a connection's SecretArn.
type SecretsClient interface {
	GetConnectionSecret(ctx context.Context, secretArn string) (*AuthSecret, error)
}

// vaultSecrets implements SecretsClient against Vault's KV v2 engine,
// grounded on packages/go-core/config/vault.go's SecretManager.GetKV2.
type vaultSecrets struct {
	reader kv2Reader
}

// kv2Reader is the minimal surface of config.SecretManager this package
// needs, kept narrow so tests can fake it without a live Vault client.
type kv2Reader interface {
	GetKV2(path string) (map[string]interface{}, error)
}

func NewVaultSecretsClient(reader kv2Reader) SecretsClient {
	return &vaultSecrets{reader: reader}
}

var connectionSecretPathPattern = regexp.MustCompile(`^arn:aws:secretsmanager:[^:]*:[^:]*:secret:(.+)$`)

func (v *vaultSecrets) GetConnectionSecret(ctx context.Context, secretArn string) (*AuthSecret, error) {
	if secretArn == "" {
		return nil, nil
	}
	path := secretArn
	if m := connectionSecretPathPattern.FindStringSubmatch(secretArn); m != nil {
		path = "secret/data/" + m[1]
	}

	data, err := v.reader.GetKV2(path)
	if err != nil {
		return nil, fmt.Errorf("read connection secret %s: %w", secretArn, err)
	}

	secret := &AuthSecret{}
	if apiKeyParams, ok := data["ApiKeyAuthParameters"].(map[string]interface{}); ok {
		secret.ApiKeyName, _ = apiKeyParams["ApiKeyName"].(string)
		secret.ApiKeyValue, _ = apiKeyParams["ApiKeyValue"].(string)
	}
	if basicParams, ok := data["BasicAuthParameters"].(map[string]interface{}); ok {
		secret.Username, _ = basicParams["Username"].(string)
		secret.Password, _ = basicParams["Password"].(string)
	}
	return secret, nil
}
