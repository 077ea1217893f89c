package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/datavet-systems/datavet/pkg/types"
)

// secretScheme prefixes config values resolved from AWS Secrets Manager.
// References take the form secretsmanager://<secret-id>[#json-key].
const secretScheme = "secretsmanager://"

// SecretsAPI is the subset of the Secrets Manager client used during load.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// resolveSecrets replaces secretsmanager:// references in secret-bearing
// config fields with fetched values. The default client is only built when a
// reference is actually present, so memory/local setups never touch AWS.
func resolveSecrets(ctx context.Context, cfg *types.ProjectConfig, client SecretsAPI) error {
	fields := secretFields(cfg)

	referenced := false
	for _, f := range fields {
		if strings.HasPrefix(*f, secretScheme) {
			referenced = true
			break
		}
	}
	if !referenced {
		return nil
	}

	if client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("loading AWS config: %w", err)
		}
		client = secretsmanager.NewFromConfig(awsCfg)
	}

	for _, f := range fields {
		if !strings.HasPrefix(*f, secretScheme) {
			continue
		}
		value, err := fetchSecret(ctx, client, strings.TrimPrefix(*f, secretScheme))
		if err != nil {
			return err
		}
		*f = value
	}
	return nil
}

// secretFields lists every config field that may carry a secret reference.
func secretFields(cfg *types.ProjectConfig) []*string {
	var out []*string
	if cfg.Redis != nil {
		out = append(out, &cfg.Redis.Password)
	}
	if cfg.Postgres != nil {
		out = append(out, &cfg.Postgres.DSN)
	}
	if cfg.Server != nil {
		out = append(out, &cfg.Server.APIKey)
	}
	for i := range cfg.Alerts {
		out = append(out, &cfg.Alerts[i].URL, &cfg.Alerts[i].AuthToken)
	}
	return out
}

// fetchSecret retrieves one secret value. A "<id>#<key>" reference extracts
// one key from a JSON object secret.
func fetchSecret(ctx context.Context, client SecretsAPI, ref string) (string, error) {
	id, key, hasKey := strings.Cut(ref, "#")
	if id == "" {
		return "", fmt.Errorf("empty secret id in reference %q", secretScheme+ref)
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return "", fmt.Errorf("fetching secret %s: %w", id, err)
	}
	secret := aws.ToString(out.SecretString)
	if !hasKey {
		return secret, nil
	}

	var obj map[string]string
	if err := json.Unmarshal([]byte(secret), &obj); err != nil {
		return "", fmt.Errorf("secret %s is not a JSON object: %w", id, err)
	}
	value, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("secret %s has no key %q", id, key)
	}
	return value, nil
}
