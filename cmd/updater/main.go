package main

import (
	"context"
	"flag"
	"os"

	"github.com/Luismorlan/msprsearch/app_config"
	"github.com/Luismorlan/msprsearch/pipeline"
	"github.com/Luismorlan/msprsearch/reporter"
	. "github.com/Luismorlan/msprsearch/utils"
	"github.com/Luismorlan/msprsearch/utils/dotenv"
	. "github.com/Luismorlan/msprsearch/utils/flag"
	. "github.com/Luismorlan/msprsearch/utils/log"
)

func cleanup() {
	Log.Info("updater shutdown")
}

// In-place update: evolve the analyzer and mappings of the live index, then
// backfill. No rows are read from the source.
func main() {
	SetDefaultService(Updater)
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

	runner, err := pipeline.NewRunner(engine, nil, nil, config, Log)
	if err != nil {
		Log.Fatal("fail to build pipeline : ", err)
	}
	runner.Interactive = EnvBool("BACKFILL_INTERACTIVE", false)
	runner.Prompt = os.Stdin
	runner.PromptOut = os.Stdout

	rep, closeReporter, err := reporter.NewReporterFromEnv()
	if err != nil {
		Log.Fatal("fail to set up run reporter : ", err)
	}
	defer closeReporter()
	runner.Reporter = rep

	run, err := runner.RunInPlaceUpdate(ctx)
	if err != nil {
		Log.WithField("run_id", run.Id).Fatal("in-place update failed : ", err)
	}
	Log.WithField("run_id", run.Id).WithField("backfilled", run.Backfilled).Info("in-place update done")
}
