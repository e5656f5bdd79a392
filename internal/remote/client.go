// Package remote is the façade over all outbound calls: vault discovery
// through ARM, secret operations through the Key Vault data plane. It owns
// the retry policy (the SDK pipeline's own retry is disabled), classifies
// failures into the kvtui error taxonomy, and obtains every token through
// the shared token cache.
package remote

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/systmms/kvtui/internal/config"
	kverrors "github.com/systmms/kvtui/internal/errors"
	"github.com/systmms/kvtui/internal/logging"
	"github.com/systmms/kvtui/internal/model"
)

// vaultScope is the data-plane scope pre-checked against the token cache
// before any secret operation, so a dead credential short-circuits without
// a network call.
const vaultScope = "https://vault.azure.net/.default"

// secretsAPI is the slice of azsecrets.Client the façade uses, narrowed so
// tests can substitute a fake.
type secretsAPI interface {
	GetSecret(ctx context.Context, name, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
	DeleteSecret(ctx context.Context, name string, options *azsecrets.DeleteSecretOptions) (azsecrets.DeleteSecretResponse, error)
	NewListSecretPropertiesPager(options *azsecrets.ListSecretPropertiesOptions) *runtime.Pager[azsecrets.ListSecretPropertiesResponse]
}

// Client is the remote client façade.
type Client struct {
	cred   azcore.TokenCredential
	retry  config.RetryConfig
	arm    *armClient
	logger *logging.Logger

	mu            sync.Mutex
	secretClients map[string]secretsAPI
	newSecrets    func(vaultURI string) (secretsAPI, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the ARM transport (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.arm.httpClient = hc }
}

// WithSecretsClientFactory replaces data-plane client construction (tests).
func WithSecretsClientFactory(f func(vaultURI string) (secretsAPI, error)) Option {
	return func(c *Client) { c.newSecrets = f }
}

// New creates the façade. cred is typically the token cache, so every
// outbound call draws credentials through it.
func New(cred azcore.TokenCredential, retryCfg config.RetryConfig, armCfg config.ARMConfig, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	c := &Client{
		cred:   cred,
		retry:  retryCfg,
		logger: logger,
		arm: &armClient{
			endpoint:    armCfg.Endpoint,
			httpClient:  http.DefaultClient,
			cred:        cred,
			concurrency: armCfg.SubscriptionConcurrency,
			logger:      logger,
		},
		secretClients: make(map[string]secretsAPI),
	}
	c.newSecrets = func(vaultURI string) (secretsAPI, error) {
		// The façade owns retry; disable the pipeline's.
		return azsecrets.NewClient(vaultURI, c.cred, &azsecrets.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				Retry: policy.RetryOptions{MaxRetries: -1},
			},
		})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListVaults discovers all vaults across the credential's subscriptions.
// Pagination is followed to exhaustion; the returned list is complete.
func (c *Client) ListVaults(ctx context.Context) ([]model.Vault, error) {
	var vaults []model.Vault
	err := c.withRetry(ctx, "list vaults", func(ctx context.Context) error {
		v, err := c.arm.listVaults(ctx)
		if err != nil {
			return err
		}
		vaults = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("discovered %d vault(s)", len(vaults))
	return vaults, nil
}

// ListSecrets returns the complete secret listing for a vault, pages
// merged and sorted by name. Values are not populated.
func (c *Client) ListSecrets(ctx context.Context, vaultURI string) ([]model.Secret, error) {
	client, err := c.secretsClient(vaultURI)
	if err != nil {
		return nil, err
	}

	var secrets []model.Secret
	err = c.withRetry(ctx, "list secrets", func(ctx context.Context) error {
		if err := c.ensureToken(ctx); err != nil {
			return err
		}
		var items []model.Secret
		pager := client.NewListSecretPropertiesPager(nil)
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return err
			}
			for _, props := range page.Value {
				if props == nil || props.ID == nil {
					continue
				}
				s := model.Secret{
					Name:    props.ID.Name(),
					Version: props.ID.Version(),
				}
				if props.Attributes != nil {
					if props.Attributes.Enabled != nil {
						s.Enabled = *props.Attributes.Enabled
					}
					if props.Attributes.Updated != nil {
						s.Updated = *props.Attributes.Updated
					}
				}
				items = append(items, s)
			}
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
		secrets = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("listed %d secret(s) for %s", len(secrets), vaultURI)
	return secrets, nil
}

// GetSecret fetches a secret's current version including its value.
func (c *Client) GetSecret(ctx context.Context, vaultURI, name string) (model.Secret, error) {
	if name == "" {
		return model.Secret{}, kverrors.ValidationError{Field: "name", Message: "must not be empty"}
	}
	client, err := c.secretsClient(vaultURI)
	if err != nil {
		return model.Secret{}, err
	}

	var secret model.Secret
	err = c.withRetry(ctx, "get secret", func(ctx context.Context) error {
		if err := c.ensureToken(ctx); err != nil {
			return err
		}
		resp, err := client.GetSecret(ctx, name, "", nil)
		if err != nil {
			return err
		}
		secret = secretFromResponse(name, resp.ID, resp.Value, resp.Attributes)
		return nil
	})
	if err != nil {
		return model.Secret{}, err
	}
	return secret, nil
}

// SetSecret creates or updates a secret and returns the confirmed record.
func (c *Client) SetSecret(ctx context.Context, vaultURI, name, value string) (model.Secret, error) {
	if name == "" {
		return model.Secret{}, kverrors.ValidationError{Field: "name", Message: "must not be empty"}
	}
	client, err := c.secretsClient(vaultURI)
	if err != nil {
		return model.Secret{}, err
	}

	var secret model.Secret
	err = c.withRetry(ctx, "set secret", func(ctx context.Context) error {
		if err := c.ensureToken(ctx); err != nil {
			return err
		}
		params := azsecrets.SetSecretParameters{Value: &value}
		resp, err := client.SetSecret(ctx, name, params, nil)
		if err != nil {
			return err
		}
		secret = secretFromResponse(name, resp.ID, resp.Value, resp.Attributes)
		return nil
	})
	if err != nil {
		return model.Secret{}, err
	}
	c.logger.Info("set secret %s in %s", name, vaultURI)
	return secret, nil
}

// DeleteSecret soft-deletes a secret; the service retains it per its
// retention policy.
func (c *Client) DeleteSecret(ctx context.Context, vaultURI, name string) error {
	if name == "" {
		return kverrors.ValidationError{Field: "name", Message: "must not be empty"}
	}
	client, err := c.secretsClient(vaultURI)
	if err != nil {
		return err
	}

	err = c.withRetry(ctx, "delete secret", func(ctx context.Context) error {
		if err := c.ensureToken(ctx); err != nil {
			return err
		}
		_, err := client.DeleteSecret(ctx, name, nil)
		return err
	})
	if err != nil {
		return err
	}
	c.logger.Info("soft-deleted secret %s in %s", name, vaultURI)
	return nil
}

// ensureToken fails fast when the credential cannot produce a data-plane
// token, before the SDK issues any request.
func (c *Client) ensureToken(ctx context.Context) error {
	_, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{vaultScope}})
	if err == nil || kverrors.IsAuth(err) {
		return err
	}
	return kverrors.AuthenticationError{Err: err}
}

// secretsClient returns the memoized data-plane client for a vault.
func (c *Client) secretsClient(vaultURI string) (secretsAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.secretClients[vaultURI]; ok {
		return client, nil
	}
	client, err := c.newSecrets(vaultURI)
	if err != nil {
		return nil, kverrors.InternalError{Message: "failed to create vault client: " + err.Error()}
	}
	c.secretClients[vaultURI] = client
	return client, nil
}

func secretFromResponse(name string, id *azsecrets.ID, value *string, attrs *azsecrets.SecretAttributes) model.Secret {
	s := model.Secret{Name: name}
	if id != nil {
		s.Name = id.Name()
		s.Version = id.Version()
	}
	if value != nil {
		s.Value = *value
	}
	if attrs != nil {
		if attrs.Enabled != nil {
			s.Enabled = *attrs.Enabled
		}
		if attrs.Updated != nil {
			s.Updated = *attrs.Updated
		}
	}
	return s
}
