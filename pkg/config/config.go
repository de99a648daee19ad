package config

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	DatasetID = "fc"
	Sensor    = "ls"
	Version   = "0.1.0"

	// Nodata is the sentinel for all 8-bit unsigned outputs. The unmixing
	// step uses -1 internally on signed values before conversion.
	Nodata uint8 = 255

	DefaultBucket         = "dep-public-data"
	DefaultCollectionRoot = "https://stac.digitalearthpacific.org"

	// PacificCatalog serves the dep_ls_fc and dep_ls_wofl collections.
	PacificCatalog = "https://stac.digitalearthpacific.org"
	// USGSCatalog serves landsat-c2l2-sr.
	USGSCatalog = "https://landsatlook.usgs.gov/stac-server"

	LandsatCollection = "landsat-c2l2-sr"
	FCCollection      = "dep_ls_fc"
	WoflCollection    = "dep_ls_wofl"
)

type Config struct {
	Bucket         string
	CollectionRoot string
}

// FromEnv reads the environment, loading a .env file first if one exists.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Bucket:         getenv("FC_BUCKET", DefaultBucket),
		CollectionRoot: getenv("OUTPUT_COLLECTION_ROOT", DefaultCollectionRoot),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
