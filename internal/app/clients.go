package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/curricula-backend/internal/platform/bucket"
	"github.com/yungbote/curricula-backend/internal/platform/envutil"
	"github.com/yungbote/curricula-backend/internal/platform/gemini"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
	"github.com/yungbote/curricula-backend/internal/platform/neo4jdb"
	"github.com/yungbote/curricula-backend/internal/platform/openai"
	"github.com/yungbote/curricula-backend/internal/platform/textgen"
	"github.com/yungbote/curricula-backend/internal/platform/wikidata"
)

type Clients struct {
	AI       textgen.Client
	Redis    *goredis.Client
	GraphDB  *neo4jdb.Client
	Entities wikidata.Resolver
	Archives bucket.Store
}

// wireClients builds the external collaborators. Optional backends (model,
// graph store, redis) come up nil on failure and the pipeline degrades;
// the archive store is required because nothing imports without it.
func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	var c Clients

	archives, err := bucket.NewFromEnv(ctx, log)
	if err != nil {
		return c, fmt.Errorf("init archive store: %w", err)
	}
	c.Archives = archives

	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		inner, err := gemini.NewClient(ctx, log)
		if err != nil {
			log.Warn("gemini init failed; enrichment runs model-free", "error", err)
		} else {
			c.AI = wrapAI(inner, log, cfg)
		}
	case "openai":
		inner, err := openai.NewClient(log)
		if err != nil {
			log.Warn("openai init failed; enrichment runs model-free", "error", err)
		} else {
			c.AI = wrapAI(inner, log, cfg)
		}
	case "none", "":
		log.Info("no generative provider configured; enrichment runs model-free")
	default:
		log.Warn("unknown provider; enrichment runs model-free", "provider", cfg.Provider)
	}

	if addr := envutil.String("REDIS_ADDR", ""); addr != "" {
		c.Redis = goredis.NewClient(&goredis.Options{
			Addr:     addr,
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
		})
	}

	if gdb, err := neo4jdb.NewFromEnv(log); err != nil {
		log.Warn("neo4j unavailable; graph sync disabled", "error", err)
	} else {
		c.GraphDB = gdb
	}

	entities, err := wikidata.NewClient(log, c.Redis)
	if err != nil {
		log.Warn("wikidata resolver unavailable; concepts stay unlinked", "error", err)
	} else {
		c.Entities = entities
	}

	return c, nil
}

func wrapAI(inner textgen.Client, log *logger.Logger, cfg Config) textgen.Client {
	limited := textgen.WithRateLimit(inner, textgen.NewLimiter(cfg.ModelRequestsPerMinute))
	return textgen.WithRetry(limited, log, textgen.DefaultRetryPolicy())
}
