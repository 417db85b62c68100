package chainio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ajitpratap0/triarb/internal/domain"
)

// StaticTokenDirectory holds a fixed anchor/intermediate token universe,
// read from config, and answers balance queries against a JSON-RPC node
// using the same plain-HTTP-POST shape the MEV transport's standard-RPC
// path uses.
type StaticTokenDirectory struct {
	anchor        domain.Asset
	intermediates []domain.Asset
	rpcURL        string
	ownerAddress  string
	httpClient    *http.Client
}

// NewStaticTokenDirectory builds a StaticTokenDirectory. rpcURL == "" makes
// Balance always report zero, which the search loop's bootstrap treats as
// "trading disabled" rather than an error.
func NewStaticTokenDirectory(anchor domain.Asset, intermediates []domain.Asset, rpcURL, ownerAddress string) *StaticTokenDirectory {
	return &StaticTokenDirectory{
		anchor:        anchor,
		intermediates: intermediates,
		rpcURL:        rpcURL,
		ownerAddress:  ownerAddress,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *StaticTokenDirectory) Anchor() domain.Asset          { return d.anchor }
func (d *StaticTokenDirectory) Intermediates() []domain.Asset { return d.intermediates }

type rpcBalanceRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcBalanceResponse struct {
	Result struct {
		Value struct {
			Amount string `json:"amount"`
		} `json:"value"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Balance queries the configured RPC endpoint for the raw balance of asset
// held by the configured owner address.
func (d *StaticTokenDirectory) Balance(ctx context.Context, asset domain.Asset) (*big.Int, error) {
	if d.rpcURL == "" {
		return big.NewInt(0), nil
	}

	body, err := json.Marshal(rpcBalanceRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTokenAccountBalance",
		Params:  []interface{}{d.ownerAddress, asset.Address},
	})
	if err != nil {
		return nil, fmt.Errorf("encode balance request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build balance request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("balance request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read balance response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("balance RPC returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded rpcBalanceResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decode balance response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("balance RPC error: %s", decoded.Error.Message)
	}

	raw, ok := new(big.Int).SetString(decoded.Result.Value.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("balance amount %q is not a valid integer", decoded.Result.Value.Amount)
	}
	return raw, nil
}
