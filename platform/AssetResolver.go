package platform

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/pkg/errors"

	"github.com/brickhost/brickd/engine/config"
)

// AssetResolver turns asset ids into downloadable content references by
// asking the platform API. Resolutions are cached for the process lifetime:
// an asset id is immutable once published, so a hit never needs
// revalidation. Implements entity.AssetResolver.
type AssetResolver struct {
	baseUrl string
	client  *http.Client

	mu    sync.RWMutex
	cache map[uint32]string
}

// NewAssetResolver creates an AssetResolver against the configured asset
// endpoint
func NewAssetResolver(cfg *config.PlatformConfig) *AssetResolver {
	return &AssetResolver{
		baseUrl: cfg.AssetBaseUrl,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   map[uint32]string{},
	}
}

type assetInfo struct {
	Id   uint32 `json:"id"`
	Type string `json:"type"`
	Url  string `json:"url"`
}

// ResolveAsset returns the content reference for an asset id, consulting
// the cache first
func (r *AssetResolver) ResolveAsset(assetId uint32) (string, error) {
	r.mu.RLock()
	ref, ok := r.cache[assetId]
	r.mu.RUnlock()
	if ok {
		return ref, nil
	}

	resp, err := r.client.Get(fmt.Sprintf("%s/v1/assets/%d", r.baseUrl, assetId))
	if err != nil {
		return "", errors.Wrapf(err, "resolve asset %d", assetId)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("resolve asset %d: platform returned %s", assetId, resp.Status)
	}

	var info assetInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", errors.Wrapf(err, "resolve asset %d: bad response", assetId)
	}
	if info.Url == "" {
		return "", errors.Errorf("resolve asset %d: no content url", assetId)
	}

	r.mu.Lock()
	r.cache[assetId] = info.Url
	r.mu.Unlock()
	return info.Url, nil
}
