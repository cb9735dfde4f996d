package main

import (
	"context"
	"flag"
	"os"

	"github.com/Luismorlan/msprsearch/app_config"
	"github.com/Luismorlan/msprsearch/enrichment"
	"github.com/Luismorlan/msprsearch/extractor"
	"github.com/Luismorlan/msprsearch/pipeline"
	"github.com/Luismorlan/msprsearch/reporter"
	. "github.com/Luismorlan/msprsearch/utils"
	"github.com/Luismorlan/msprsearch/utils/dotenv"
	. "github.com/Luismorlan/msprsearch/utils/flag"
	. "github.com/Luismorlan/msprsearch/utils/log"
	"github.com/sirupsen/logrus"
)

func cleanup() {
	Log.Info("indexer shutdown")
}

// Full rebuild: the index is deleted and recreated from the source view.
func main() {
	SetDefaultService(Indexer)
	flag.Parse()
	InitLogger()
	defer cleanup()

	if err := dotenv.LoadDotEnvs(); err != nil {
		Log.Fatal("fail to load env : ", err)
	}

	config, err := app_config.ParseIndexerAppConfig(AppConfigPath)
	if err != nil {
		Log.Fatal("fail to parse app config : ", err)
	}

	ctx := context.Background()
	engine, err := GetSearchEngine(ctx, config.RequestTimeout())
	if err != nil {
		Log.Fatal("fail to connect Elasticsearch : ", err)
	}
	defer engine.Stop()

	db, err := GetSourceDBConnection()
	if err != nil {
		Log.Fatal("fail to connect source database : ", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		Log.Fatal("fail to get source connection pool : ", err)
	}

	keywords := enrichment.Select(ctx, enrichment.Capabilities{
		EmbeddingURL: os.Getenv("EMBEDDING_URL"),
		Timeout:      config.RequestTimeout(),
	}, Log)

	runner, err := pipeline.NewRunner(engine, extractor.New(sqlDB, config.SOURCE_QUERY, Log), keywords, config, Log)
	if err != nil {
		Log.Fatal("fail to build pipeline : ", err)
	}
	runner.CloseSource = func() error { return CloseDB(db) }
	runner.Interactive = EnvBool("BACKFILL_INTERACTIVE", false)
	runner.Prompt = os.Stdin
	runner.PromptOut = os.Stdout

	rep, closeReporter, err := reporter.NewReporterFromEnv()
	if err != nil {
		Log.Fatal("fail to set up run reporter : ", err)
	}
	defer closeReporter()
	runner.Reporter = rep

	run, err := runner.RunFullRebuild(ctx)
	if err != nil {
		Log.WithField("run_id", run.Id).Fatal("full rebuild failed : ", err)
	}
	Log.WithFields(logrus.Fields{
		"run_id":    run.Id,
		"succeeded": run.Succeeded,
		"failed":    run.Failed,
	}).Info("full rebuild done")
}
