package config

import (
	"flag"
	"io"
	"time"
)

// flagValues keeps what was parsed from the command line together with the
// set of flags actually given, so only explicit flags override other sources.
//
// Supported flags:
//
//	-c, -config string  path to a JSON config file
//	-a string           HTTP bind address (e.g. ":3000")
//	-w string           WebSocket stream bind address (e.g. ":9001")
//	-d string           PostgreSQL DSN
//	-s string           session signing secret
//	-t int              session validity, minutes
//	-u string           users directory
//	-l string           log level
type flagValues struct {
	configFile     string
	httpAddr       string
	streamAddr     string
	databaseDSN    string
	sessionSecret  string
	sessionMinutes int
	usersDir       string
	logLevel       string
	set            map[string]bool
}

func parseFlags(args []string) (*flagValues, error) {
	v := &flagValues{set: map[string]bool{}}

	fs := flag.NewFlagSet("voicedrop", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&v.configFile, "config", "", "path to config file")
	fs.StringVar(&v.configFile, "c", "", "path to config file (short)")
	fs.StringVar(&v.httpAddr, "a", "", "address and port of the HTTP API")
	fs.StringVar(&v.streamAddr, "w", "", "address and port of the audio stream endpoint")
	fs.StringVar(&v.databaseDSN, "d", "", "database DSN")
	fs.StringVar(&v.sessionSecret, "s", "", "session secret")
	fs.IntVar(&v.sessionMinutes, "t", 0, "session validity (in minutes)")
	fs.StringVar(&v.usersDir, "u", "", "users directory")
	fs.StringVar(&v.logLevel, "l", "", "log level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) { v.set[f.Name] = true })

	return v, nil
}

func (v *flagValues) apply(config *Config) {
	if v.set["a"] {
		config.EndpointAddrHTTP = v.httpAddr
	}
	if v.set["w"] {
		config.EndpointAddrStream = v.streamAddr
	}
	if v.set["d"] {
		config.DatabaseDSN = v.databaseDSN
	}
	if v.set["s"] {
		config.SessionSecret = v.sessionSecret
	}
	if v.set["t"] {
		config.SessionValidityDuration = time.Duration(v.sessionMinutes) * time.Minute
	}
	if v.set["u"] {
		config.UsersDir = v.usersDir
	}
	if v.set["l"] {
		config.LogLevel = v.logLevel
	}
}
