/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across binaries and service-agnostic.
	Each main calls SetDefaultService with its own name, then flag.Parse() after
	declaring its own flags, then re-inits the logger so the service name is
	picked up.
*/

package flag

import (
	"flag"
)

const (
	Indexer   = "indexer"
	Updater   = "updater"
	Extractor = "extractor"
)

var (
	ServiceName   string
	AppConfigPath string
)

func init() {
	flag.StringVar(&ServiceName, "service", Indexer, "'indexer', 'updater' or 'extractor'")
	flag.StringVar(&AppConfigPath, "app_config_path", "cmd/indexer/config.yaml", "path to the pipeline app config")
}

// SetDefaultService sets the -service default for the calling binary. It must
// run before flag.Parse so an explicit -service still wins.
func SetDefaultService(name string) {
	ServiceName = name
	if f := flag.Lookup("service"); f != nil {
		f.DefValue = name
	}
}
