package config

import (
	"flag"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

type Cli struct {
	HTTPAddress string
	PprofPort   int

	// Storage
	ObjectStoreURL   string
	PublicStorageURL *url.URL
	PresignS3Region  string
	PostgresURL      string

	// External video-editing API
	OpenShotURL   string
	OpenShotToken string

	// Audio processing
	SeparatorCmd       []string
	TranscriberCmd     []string
	WorkspaceRoot      string
	WorkspaceMaxAge    time.Duration
	OriginalBitrate    string
	OriginalChannels   int
	StemBitrate        string
	SampleRate         int
	MaxInFlightJobs    int
	StreamParallelism  int
	FetchTimeout       time.Duration
	SegmentExtensions  []string
	ObjectStoreTimeout time.Duration
}

// OpenShotConfigured reports whether the video preparation endpoint can be served
func (cli *Cli) OpenShotConfigured() bool {
	return cli.OpenShotURL != "" && cli.OpenShotToken != ""
}

// Validate checks the combinations of flags that ff can't check for us
func (cli *Cli) Validate() error {
	if cli.ObjectStoreURL == "" {
		return fmt.Errorf("-object-store-url is required")
	}
	if cli.PostgresURL == "" {
		return fmt.Errorf("-postgres-url is required")
	}
	if len(cli.SeparatorCmd) == 0 {
		return fmt.Errorf("-separator-cmd is required")
	}
	if len(cli.TranscriberCmd) == 0 {
		return fmt.Errorf("-transcriber-cmd is required")
	}
	if cli.StreamParallelism < 1 {
		return fmt.Errorf("-stream-parallelism must be at least 1, got %d", cli.StreamParallelism)
	}
	if cli.MaxInFlightJobs < 1 {
		return fmt.Errorf("-max-inflight-jobs must be at least 1, got %d", cli.MaxInFlightJobs)
	}
	return nil
}

func parseURL(s string, dest **url.URL) error {
	if s == "" {
		*dest = nil
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if _, err = url.ParseQuery(u.RawQuery); err != nil {
		return err
	}
	*dest = u
	return nil
}

func URLVarFlag(fs *flag.FlagSet, dest **url.URL, name, value, usage string) {
	if err := parseURL(value, dest); err != nil {
		panic(err)
	}
	fs.Func(name, usage, func(s string) error {
		return parseURL(s, dest)
	})
}

// AddrFlag is a flag for a host:port listen address
func AddrFlag(fs *flag.FlagSet, dest *string, name, value, usage string) {
	*dest = value
	fs.Func(name, usage, func(s string) error {
		_, _, err := net.SplitHostPort(s)
		if err != nil {
			return err
		}
		*dest = s
		return nil
	})
}

// SpaceSliceFlag handles command lines, e.g. -separator-cmd="python3 separate.py --model htdemucs"
func SpaceSliceFlag(fs *flag.FlagSet, dest *[]string, name string, value []string, usage string) {
	*dest = value
	fs.Func(name, usage, func(s string) error {
		*dest = strings.Fields(s)
		return nil
	})
}

func CommaSliceFlag(fs *flag.FlagSet, dest *[]string, name string, value []string, usage string) {
	*dest = value
	fs.Func(name, usage, func(s string) error {
		if s == "" {
			*dest = []string{}
			return nil
		}
		*dest = strings.Split(s, ",")
		return nil
	})
}
