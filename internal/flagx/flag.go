// Package flagx contains helpers for components that share os.Args but
// each parse only the flags they own.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// FilterArgs keeps only the allowedFlags (with their values) from args.
// Both "-c conf.json" and "--config=conf.json" forms are recognised; a
// following argument is taken as the value unless it starts with "-".
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigFileFlag extracts the JSON config file path provided via -c or
// -config. Other arguments are ignored so that components can parse their
// own flags without collisions. Returns "" when neither flag is present.
func ConfigFileFlag() string {
	return stringFlag([]string{"c", "config"}, "Path to config file")
}

// EnvFileFlag extracts the dotenv file path provided via -env.
// Returns "" when the flag is absent.
func EnvFileFlag() string {
	return stringFlag([]string{"env"}, "Path to .env file")
}

// stringFlag parses a single string option that may be spelled with any of
// names. When repeated, the last occurrence wins.
func stringFlag(names []string, usage string) string {
	var value string

	allowed := make([]string, 0, len(names))
	for _, n := range names {
		allowed = append(allowed, "-"+n)
	}
	args := FilterArgs(os.Args[1:], allowed)

	fs := flag.NewFlagSet(names[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for _, n := range names {
		fs.StringVar(&value, n, "", usage)
	}
	_ = fs.Parse(args)

	return value
}
