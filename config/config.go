package config

import "time"

var Version string

// Used so that we can generate fixed timestamps in tests
var Clock TimestampGenerator = RealTimestampGenerator{}

// Fixed processing parameters for the PCM interchange format
const (
	PCMSampleRate = 44100
	PCMChannels   = 2
)

// Default HTTP listen address for the public API
const DefaultHTTPAddress = "0.0.0.0:8990"

const DefaultWorkspaceMaxAge = 6 * time.Hour

// How long an upload to the object store may take before it is abandoned
const DefaultObjectStoreTimeout = 2 * time.Minute
