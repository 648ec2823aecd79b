package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/visionlock/internal/flagx"
)

// FlagNames lists the short flags parseFlags understands.
var FlagNames = []string{"-a", "-g", "-r", "-d", "-s", "-t", "-i", "-k", "-l"}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC bind address (e.g., ":50051")
//	-r string   database driver ("pgx" or "sqlite")
//	-d string   database DSN
//	-s string   JWT HMAC secret key
//	-t int      token validity, minutes
//	-i string   inference service base URL
//	-k int      failed attempts before lockout
//	-l string   log level
//
// os.Args is filtered with flagx.FilterArgs first, so flags owned by other
// layers (such as -c) do not cause parse errors.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], FlagNames)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.DatabaseDriver, "r", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Minutes()), "token validity (in minutes)")
	fs.StringVar(&config.InferenceURL, "i", config.InferenceURL, "inference service URL")
	fs.IntVar(&config.LockoutThreshold, "k", config.LockoutThreshold, "failed attempts before lockout")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
		}
	})
	return nil
}
