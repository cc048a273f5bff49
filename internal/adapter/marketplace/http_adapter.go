// Package marketplace contains the fetch-side connectors. The HTTP adapter
// talks to the surplus-food API with credentials from the credential store;
// the mock adapter replays scripted snapshots for offline runs.
package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tholander/bagwatch/internal/core/domain"
	"github.com/tholander/bagwatch/internal/port"
)

type HTTPAdapterOptions struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

type HTTPAdapter struct {
	baseURL  string
	client   *http.Client
	creds    port.CredentialRepository
	pageSize int
}

func NewHTTPAdapter(opts HTTPAdapterOptions, creds port.CredentialRepository) (*HTTPAdapter, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		return nil, errors.New("BaseURL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}

	to := opts.Timeout
	if to <= 0 {
		to = 20 * time.Second
	}
	size := opts.PageSize
	if size <= 0 {
		size = 100
	}

	return &HTTPAdapter{
		baseURL:  strings.TrimRight(base, "/"),
		client:   &http.Client{Timeout: to},
		creds:    creds,
		pageSize: size,
	}, nil
}

// fetchPayload mirrors the marketplace item listing response.
type fetchPayload struct {
	Items []struct {
		Item struct {
			ItemID             string `json:"item_id"`
			Description        string `json:"description"`
			PriceIncludingTaxes struct {
				MinorUnits int `json:"minor_units"`
				Decimals   int `json:"decimals"`
			} `json:"price_including_taxes"`
			LogoPicture struct {
				CurrentURL string `json:"current_url"`
			} `json:"logo_picture"`
		} `json:"item"`
		Store struct {
			StoreName string `json:"store_name"`
			Branch    string `json:"branch"`
		} `json:"store"`
		PickupLocation struct {
			Location struct {
				Longitude float64 `json:"longitude"`
				Latitude  float64 `json:"latitude"`
			} `json:"location"`
			Address struct {
				AddressLine string `json:"address_line"`
			} `json:"address"`
		} `json:"pickup_location"`
		DisplayName    string `json:"display_name"`
		ItemsAvailable int    `json:"items_available"`
	} `json:"items"`
}

func (a *HTTPAdapter) Fetch(ctx context.Context) ([]domain.FetchedItem, error) {
	creds, err := a.creds.GetCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil {
		return nil, port.ErrNoCredentials
	}

	u := fmt.Sprintf("%s/api/item/?page_size=%d", a.baseURL, a.pageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Accept", "application/json")
	if creds.Cookie != "" {
		req.Header.Set("Cookie", creds.Cookie)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, port.ErrAuthRequired
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited (status %d)", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var payload fetchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	items := make([]domain.FetchedItem, 0, len(payload.Items))
	for _, entry := range payload.Items {
		id, err := strconv.ParseInt(entry.Item.ItemID, 10, 64)
		if err != nil {
			log.Printf("marketplace: skipping item with unparsable id %q", entry.Item.ItemID)
			continue
		}

		items = append(items, domain.FetchedItem{
			ItemID:          id,
			Quantity:        entry.ItemsAvailable,
			DisplayName:     storeDisplayName(entry.DisplayName, entry.Store.StoreName, entry.Store.Branch),
			Description:     entry.Item.Description,
			PriceMinorUnits: entry.Item.PriceIncludingTaxes.MinorUnits,
			PriceDecimals:   entry.Item.PriceIncludingTaxes.Decimals,
			LogoURL:         entry.Item.LogoPicture.CurrentURL,
			Branch:          entry.Store.Branch,
			Address:         entry.PickupLocation.Address.AddressLine,
			Latitude:        entry.PickupLocation.Location.Latitude,
			Longitude:       entry.PickupLocation.Location.Longitude,
		})
	}

	return items, nil
}

// storeDisplayName prefers the listing's own display name, falling back to
// "store - branch".
func storeDisplayName(displayName, storeName, branch string) string {
	if displayName != "" {
		return displayName
	}
	if branch != "" {
		return storeName + " - " + branch
	}
	return storeName
}
