package main

import (
	"context"
	"flag"
	"os"

	"github.com/Luismorlan/msprsearch/app_config"
	"github.com/Luismorlan/msprsearch/enrichment"
	"github.com/Luismorlan/msprsearch/server"
	. "github.com/Luismorlan/msprsearch/utils"
	"github.com/Luismorlan/msprsearch/utils/dotenv"
	. "github.com/Luismorlan/msprsearch/utils/flag"
	. "github.com/Luismorlan/msprsearch/utils/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

func cleanup() {
	CloseProfiler()
	CloseTracer()
	Log.Info("extractor server shutdown")
}

func main() {
	SetDefaultService(Extractor)
	flag.Parse()
	InitLogger()
	defer cleanup()

	if err := dotenv.LoadDotEnvs(); err != nil {
		Log.Fatal("fail to load env : ", err)
	}
	if IsProdEnv() {
		gin.SetMode(gin.ReleaseMode)
		StartTracer()
		StartProfiler()
	}

	config, err := app_config.ParseIndexerAppConfig(AppConfigPath)
	if err != nil {
		Log.Fatal("fail to parse app config : ", err)
	}

	// The strategy is chosen, and its model loaded, once per process.
	ctx := context.Background()
	keywords := enrichment.Select(ctx, enrichment.Capabilities{
		EmbeddingURL:    os.Getenv("EMBEDDING_URL"),
		PreferEmbedding: true,
		Timeout:         config.RequestTimeout(),
	}, Log)

	if cache := GetRedisClient(); cache != nil {
		defer cache.Close()
		if err := cache.Ping(ctx); err != nil {
			Log.WithError(err).Warn("redis unreachable, keyword cache disabled")
		} else {
			keywords = enrichment.NewCachedExtractor(keywords, cache, config.KeywordCacheTTL(), Log)
			Log.Info("keyword cache enabled")
		}
	}

	handler := server.NewEnrichmentHandler(keywords, config.EXTRACT_MAX_KEYWORDS, Log)
	router := server.NewRouter(handler, cors.Default(), gintrace.Middleware(ServiceName))

	addr := ":" + EnvOrDefault("PORT", "8080")
	Log.WithField("addr", addr).Info("extractor server starts up")
	if err := router.Run(addr); err != nil {
		Log.Fatal("extractor server stopped : ", err)
	}
}
