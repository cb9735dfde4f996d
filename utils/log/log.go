package log

import (
	"os"
	"time"

	"github.com/Luismorlan/msprsearch/utils/dotenv"
	"github.com/Luismorlan/msprsearch/utils/flag"
	ddhook "github.com/bin3377/logrus-datadog-hook"
	"github.com/sirupsen/logrus"
)

const (
	datadogUSHost    = "http-intake.logs.datadoghq.com"
	syncFrequencySec = 30
	syncRetry        = 3
)

// global accessible logger
var (
	logger *logrus.Logger
	Log    *logrus.Entry
)

// This init function is only for testing cases, where the entry point is not
// main function. Unit test will fail with nil pointer dereference if we don't
// init here.
func init() {
	InitLogger()
}

// InitLogger (re)builds the global logger. Binaries call it again after
// flag.Parse() so that the service field reflects the -service flag.
func InitLogger() {
	logger = logrus.New()

	isProd := os.Getenv(dotenv.EnvKey) == dotenv.ProdEnv
	if apiKey := os.Getenv("DATADOG_API_KEY"); isProd && apiKey != "" {
		hook := ddhook.NewHook(
			datadogUSHost,
			apiKey,
			syncFrequencySec*time.Second,
			syncRetry,
			logrus.InfoLevel,
			&logrus.JSONFormatter{},
			ddhook.Options{},
		)
		logger.Hooks.Add(hook)
	}

	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	// Also send log to stderr, without json formatter for better readability
	logger.SetOutput(os.Stderr)

	Log = logger.WithFields(
		logrus.Fields{"service": flag.ServiceName, "is_development": !isProd},
	)
}

// ForComponent returns the global entry tagged with a component name.
func ForComponent(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
