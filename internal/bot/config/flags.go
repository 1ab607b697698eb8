package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/pollwatch/internal/flagx"
)

// parseFlags overlays command-line flags onto config.
//
// Supported flags:
//
//	-g string   comma separated group JIDs
//	-d string   database DSN
//	-n string   database name (MongoDB)
//	-s string   WhatsApp session file
//	-k string   media sink: fs or s3
//	-m string   media directory for the fs sink
//	-b string   S3 bucket
//	-e string   S3 endpoint (MinIO)
//	-p string   merge policy: replace or accumulate
//	-a string   gRPC health address
//	-x string   Prometheus metrics address
//	-l string   log level
//
// Arguments are first filtered with flagx.FilterArgs so the config file
// flags and anything unknown do not break parsing.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-g", "-d", "-n", "-s", "-k", "-m", "-b", "-e", "-p", "-a", "-x", "-l"})

	fs := flag.NewFlagSet("bot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	groups := fs.String("g", "", "comma separated group JIDs")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DatabaseName, "n", config.DatabaseName, "database name")
	fs.StringVar(&config.SessionPath, "s", config.SessionPath, "WhatsApp session file")
	fs.StringVar(&config.MediaSink, "k", config.MediaSink, "media sink (fs or s3)")
	fs.StringVar(&config.MediaDir, "m", config.MediaDir, "media directory")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Endpoint, "e", config.S3Endpoint, "S3 endpoint")
	fs.StringVar(&config.MergePolicy, "p", config.MergePolicy, "merge policy (replace or accumulate)")
	fs.StringVar(&config.HealthAddr, "a", config.HealthAddr, "gRPC health address")
	fs.StringVar(&config.MetricsAddr, "x", config.MetricsAddr, "metrics address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *groups != "" {
		config.GroupJIDs = splitList(*groups)
	}
	return nil
}
