// Package identity builds the Azure credential the whole program
// authenticates with.
package identity

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	kverrors "github.com/systmms/kvtui/internal/errors"
	"github.com/systmms/kvtui/internal/logging"
)

// NewCredential builds the credential chain: Azure CLI first, since an
// interactive terminal session nearly always has an `az login` behind it,
// then the default chain (environment, workload identity, managed
// identity) for everything else.
func NewCredential(logger *logging.Logger) (azcore.TokenCredential, error) {
	cli, err := azidentity.NewAzureCLICredential(nil)
	if err != nil {
		return nil, kverrors.AuthenticationError{Err: err}
	}
	def, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, kverrors.AuthenticationError{Err: err}
	}
	chain, err := azidentity.NewChainedTokenCredential([]azcore.TokenCredential{cli, def}, nil)
	if err != nil {
		return nil, kverrors.AuthenticationError{Err: err}
	}
	logger.Debug("credential chain ready: azure cli, default chain")
	return chain, nil
}

// Validate acquires one management-plane token to prove the credential
// works before the interface starts. A credential that cannot produce a
// token here would fail every subsequent call.
func Validate(ctx context.Context, cred azcore.TokenCredential, armEndpoint string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{armEndpoint + "/.default"},
	})
	if err != nil {
		if kverrors.IsAuth(err) {
			return err
		}
		return kverrors.AuthenticationError{Err: err}
	}
	return nil
}
