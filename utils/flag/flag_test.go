package flag

import (
	goflag "flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaultService(t *testing.T) {
	old := ServiceName
	defer SetDefaultService(old)

	t.Run("[default follows the binary]", func(t *testing.T) {
		SetDefaultService(Updater)
		assert.Equal(t, Updater, ServiceName)
		f := goflag.Lookup("service")
		require.NotNil(t, f)
		assert.Equal(t, Updater, f.DefValue)
	})

	t.Run("[explicit flag wins]", func(t *testing.T) {
		SetDefaultService(Extractor)
		fs := goflag.NewFlagSet("extractor", goflag.ContinueOnError)
		fs.StringVar(&ServiceName, "service", ServiceName, "")
		require.NoError(t, fs.Parse([]string{"-service", Indexer}))
		assert.Equal(t, Indexer, ServiceName)
	})
}
