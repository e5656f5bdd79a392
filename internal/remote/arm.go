package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	kverrors "github.com/systmms/kvtui/internal/errors"
	"github.com/systmms/kvtui/internal/logging"
	"github.com/systmms/kvtui/internal/model"
	"golang.org/x/sync/errgroup"
)

const (
	subscriptionsAPIVersion = "2022-12-01"
	vaultsAPIVersion        = "2023-07-01"
)

// armClient walks the Azure Resource Manager listing APIs to discover
// vaults. There is no resources SDK in use here; the management plane is
// plain REST with nextLink continuation, authenticated through the token
// cache.
type armClient struct {
	endpoint    string
	httpClient  *http.Client
	cred        azcore.TokenCredential
	concurrency int
	logger      *logging.Logger
}

type subscriptionPage struct {
	Value []struct {
		SubscriptionID string `json:"subscriptionId"`
	} `json:"value"`
	NextLink string `json:"nextLink"`
}

type vaultPage struct {
	Value []struct {
		Name       string `json:"name"`
		Properties struct {
			VaultURI string `json:"vaultUri"`
		} `json:"properties"`
	} `json:"value"`
	NextLink string `json:"nextLink"`
}

// listVaults discovers every vault visible to the credential: page through
// subscriptions, then page through each subscription's vaults with bounded
// fan-out. Only the complete merged list is returned; a failure anywhere
// fails the whole discovery rather than yielding a silently truncated
// inventory.
func (a *armClient) listVaults(ctx context.Context) ([]model.Vault, error) {
	tok, err := a.cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{a.endpoint + "/.default"},
	})
	if err != nil {
		if kverrors.IsAuth(err) {
			return nil, err
		}
		return nil, kverrors.AuthenticationError{Err: err}
	}

	subs, err := a.listSubscriptions(ctx, tok.Token)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("discovered %d subscription(s)", len(subs))

	perSub := make([][]model.Vault, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, subID := range subs {
		g.Go(func() error {
			vaults, err := a.listVaultsForSubscription(gctx, tok.Token, subID)
			if err != nil {
				return err
			}
			perSub[i] = vaults
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in subscription order, preserving server page order within
	// each subscription.
	var merged []model.Vault
	for _, vaults := range perSub {
		merged = append(merged, vaults...)
	}
	return merged, nil
}

func (a *armClient) listSubscriptions(ctx context.Context, bearer string) ([]string, error) {
	var subs []string
	url := fmt.Sprintf("%s/subscriptions?api-version=%s", a.endpoint, subscriptionsAPIVersion)
	for url != "" {
		var page subscriptionPage
		if err := a.getJSON(ctx, bearer, url, &page); err != nil {
			return nil, err
		}
		for _, s := range page.Value {
			subs = append(subs, s.SubscriptionID)
		}
		url = page.NextLink
	}
	return subs, nil
}

func (a *armClient) listVaultsForSubscription(ctx context.Context, bearer, subID string) ([]model.Vault, error) {
	var vaults []model.Vault
	url := fmt.Sprintf("%s/subscriptions/%s/providers/Microsoft.KeyVault/vaults?api-version=%s",
		a.endpoint, subID, vaultsAPIVersion)
	for url != "" {
		var page vaultPage
		if err := a.getJSON(ctx, bearer, url, &page); err != nil {
			return nil, err
		}
		for _, v := range page.Value {
			if v.Name == "" || v.Properties.VaultURI == "" {
				continue
			}
			vaults = append(vaults, model.Vault{
				Name:           v.Name,
				URI:            v.Properties.VaultURI,
				SubscriptionID: subID,
			})
		}
		url = page.NextLink
	}
	return vaults, nil
}

func (a *armClient) getJSON(ctx context.Context, bearer, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return runtime.NewResponseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
