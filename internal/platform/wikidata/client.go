package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/curricula-backend/internal/platform/logger"
)

// EntityRef is a resolved external knowledge-base entity.
type EntityRef struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Resolver looks concept names up in an external knowledge base. A miss is
// (nil, nil): unresolved concepts are an operator-review matter, not an error.
type Resolver interface {
	Resolve(ctx context.Context, name string) (*EntityRef, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	language   string
	httpClient *http.Client
	rdb        *goredis.Client
	cacheTTL   time.Duration
}

// NewClient builds a wikidata resolver. rdb is optional; when present,
// lookups are cached so repeated imports of related courses stay cheap.
func NewClient(log *logger.Logger, rdb *goredis.Client) (Resolver, error) {
	if log == nil {
		return nil, fmt.Errorf("wikidata: logger required")
	}
	baseURL := strings.TrimSpace(os.Getenv("WIKIDATA_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://www.wikidata.org"
	}
	lang := strings.TrimSpace(os.Getenv("WIKIDATA_LANGUAGE"))
	if lang == "" {
		lang = "en"
	}
	return &client{
		log:        log.With("service", "WikidataClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   lang,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		rdb:        rdb,
		cacheTTL:   7 * 24 * time.Hour,
	}, nil
}

type searchResponse struct {
	Search []struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Description string `json:"description"`
		ConceptURI  string `json:"concepturi"`
	} `json:"search"`
}

func (c *client) Resolve(ctx context.Context, name string) (*EntityRef, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	cacheKey := "wikidata:entity:" + strings.ToLower(name)
	if c.rdb != nil {
		if raw, err := c.rdb.Get(ctx, cacheKey).Result(); err == nil && raw != "" {
			if raw == "miss" {
				return nil, nil
			}
			var ref EntityRef
			if json.Unmarshal([]byte(raw), &ref) == nil {
				return &ref, nil
			}
		}
	}

	q := url.Values{}
	q.Set("action", "wbsearchentities")
	q.Set("format", "json")
	q.Set("language", c.language)
	q.Set("type", "item")
	q.Set("limit", "1")
	q.Set("search", name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/w/api.php?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wikidata search http %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, fmt.Errorf("wikidata decode: %w", err)
	}
	if len(sr.Search) == 0 {
		c.cache(ctx, cacheKey, nil)
		return nil, nil
	}

	hit := sr.Search[0]
	ref := &EntityRef{
		ID:          hit.ID,
		Label:       hit.Label,
		Description: hit.Description,
		URL:         hit.ConceptURI,
	}
	c.cache(ctx, cacheKey, ref)
	return ref, nil
}

func (c *client) cache(ctx context.Context, key string, ref *EntityRef) {
	if c.rdb == nil {
		return
	}
	val := "miss"
	if ref != nil {
		if b, err := json.Marshal(ref); err == nil {
			val = string(b)
		}
	}
	if err := c.rdb.Set(ctx, key, val, c.cacheTTL).Err(); err != nil {
		c.log.Debug("entity cache write failed", "key", key, "error", err)
	}
}
