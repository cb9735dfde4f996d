package utils

import (
	"os"
	"strconv"
	"strings"

	"github.com/Luismorlan/msprsearch/utils/dotenv"
)

func IsProdEnv() bool {
	return os.Getenv(dotenv.EnvKey) == dotenv.ProdEnv
}

// EnvOrDefault returns the value of key, or def when it is unset or blank.
func EnvOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EnvBool accepts the usual truthy spellings ("1", "true", "yes", "y").
func EnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "y", "yes", "on":
		return true
	case "n", "no", "off":
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// EnvInt returns def when key is unset or not an integer.
func EnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
