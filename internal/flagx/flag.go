// Package flagx lets several components parse their own flags from one
// command line without tripping over each other's unknown flags.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigEnvVar names the environment variable consulted when no -c/-config
// flag is given.
const ConfigEnvVar = "VISIONLOCK_CONFIG"

// FilterArgs keeps only the flags listed in allowed (and their values).
// Both "-f value" and "-f=value" forms are recognised; a following token
// starting with '-' is never taken as a value.
func FilterArgs(args []string, allowed []string) []string {
	known := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		known[f] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if known[name] {
				out = append(out, arg)
			}
			continue
		}

		if !known[arg] {
			continue
		}
		out = append(out, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// ConfigFlags are the spellings of the config file flag.
var ConfigFlags = []string{"-c", "-config", "--config"}

// StripArgs is the complement of FilterArgs: it drops the listed flags and
// their values and keeps everything else in order.
func StripArgs(args []string, known []string) []string {
	drop := make(map[string]bool, len(known))
	for _, f := range known {
		drop[f] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if !drop[name] {
				out = append(out, arg)
			}
			continue
		}

		if !drop[arg] {
			out = append(out, arg)
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
		}
	}
	return out
}

// ConfigFile returns the JSON config path from -c/-config, falling back to
// $VISIONLOCK_CONFIG. Empty means no file.
func ConfigFile() string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(FilterArgs(os.Args[1:], ConfigFlags))

	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}
	return path
}
