package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmehra2102/Cartified/internal/order/domain"
)

const (
	DefaultEndpoint = "https://api.pinata.cloud/pinning/pinJSONToIPFS"
	DefaultGateway  = "https://gateway.pinata.cloud/ipfs"
	// SchemeGateway makes uploads return ipfs://<hash> URIs.
	SchemeGateway = "ipfs://"
)

type Config struct {
	Endpoint string
	Gateway  string
	JWT      string
	Timeout  time.Duration
}

// Pinata pins JSON documents through the pinJSONToIPFS API and reads them back
// through an HTTP gateway.
type Pinata struct {
	log    *slog.Logger
	cfg    Config
	client *http.Client
}

func NewPinata(log *slog.Logger, cfg Config) *Pinata {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Gateway == "" {
		cfg.Gateway = DefaultGateway
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Pinata{log: log, cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type pinRequest struct {
	Content  any         `json:"pinataContent"`
	Metadata pinMetadata `json:"pinataMetadata"`
}

type pinMetadata struct {
	Name string `json:"name"`
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

func (p *Pinata) Upload(ctx context.Context, payload domain.Payload) (domain.ContentURI, error) {
	body, err := json.Marshal(pinRequest{
		Content:  payload,
		Metadata: pinMetadata{Name: "order-" + payload.Timestamp},
	})
	if err != nil {
		return domain.ContentURI{}, fmt.Errorf("%w: encode payload: %w", domain.ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ContentURI{}, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.JWT)

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.ContentURI{}, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.ContentURI{}, fmt.Errorf("%w: status %d", domain.ErrUploadUnauthorized, resp.StatusCode)
	case resp.StatusCode/100 != 2:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ContentURI{}, fmt.Errorf("%w: status %d: %s", domain.ErrUploadFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ContentURI{}, fmt.Errorf("%w: decode response: %w", domain.ErrUploadFailed, err)
	}
	if out.IpfsHash == "" {
		return domain.ContentURI{}, fmt.Errorf("%w: response has no content hash", domain.ErrUploadFailed)
	}

	uri := domain.ContentURI{Hash: out.IpfsHash, URL: p.URL(out.IpfsHash)}
	p.log.Info("order metadata pinned", "hash", uri.Hash)
	return uri, nil
}

func (p *Pinata) URL(hash string) string {
	if p.cfg.Gateway == SchemeGateway {
		return SchemeGateway + hash
	}
	return strings.TrimRight(p.cfg.Gateway, "/") + "/" + hash
}

// Resolve turns an ipfs:// URI into a gateway URL. Other URIs are returned
// unchanged.
func (p *Pinata) Resolve(uri string) string {
	hash, ok := strings.CutPrefix(uri, SchemeGateway)
	if !ok {
		return uri
	}
	gw := p.cfg.Gateway
	if gw == SchemeGateway {
		gw = DefaultGateway
	}
	return strings.TrimRight(gw, "/") + "/" + hash
}

func (p *Pinata) Fetch(ctx context.Context, uri string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Resolve(uri), nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("fetch %s: status %d", uri, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
