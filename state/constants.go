package state

import "time"

const (
	GroupIxps       = "ixps"
	GroupStubs      = "stubs"
	GroupMultihomed = "multihomed"
	GroupTransit    = "transit"
)

var Groups = []string{GroupIxps, GroupStubs, GroupMultihomed, GroupTransit}

var (
	CaidaSerial2Url = "http://data.caida.org/datasets/as-relationships/serial-2/"
	// CaidaDownloadLag is how far back the default dataset date is, CAIDA publishes monthly with a delay.
	CaidaDownloadLag = 10 * 24 * time.Hour
	CaidaIndexTTL    = 10 * time.Minute
	HttpTimeout      = 2 * time.Minute

	DefaultMaxRounds = 64
	DefaultWorkers   = 8

	SimConfigPath      = "sim.yaml"
	DefaultResultsPath = "results.db"
	DebugAddr          = "localhost:6060"
	CacheDirName       = "bgpr"

	// TracerBuffer is the number of route events buffered before Submit blocks.
	TracerBuffer = 1024
)
