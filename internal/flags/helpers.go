package flags

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/truebit/federation/internal/version"
	"github.com/truebit/federation/params"
	"github.com/urfave/cli/v2"
)

// NewApp creates an app with sane defaults.
func NewApp(usage string) *cli.App {
	git, _ := version.VCS()
	app := cli.NewApp()
	app.Name = filepath.Base(os.Args[0])
	app.EnableBashCompletion = true
	app.Version = params.VersionWithCommit(git.Commit, git.Date)
	app.Usage = usage
	app.Before = func(ctx *cli.Context) error {
		MigrateGlobalFlags(ctx)
		return nil
	}
	return app
}

// Merge merges the given flag slices.
func Merge(groups ...[]cli.Flag) []cli.Flag {
	var ret []cli.Flag
	for _, group := range groups {
		ret = append(ret, group...)
	}
	return ret
}

var migrationApplied = map[*cli.Command]struct{}{}

// MigrateGlobalFlags makes all global flag values available in the
// context. This should be called as early as possible in app.Before.
//
// Example:
//
//	fedagg db stats --db.path /tmp/agg.db
//
// is equivalent after calling this method with:
//
//	fedagg --db.path /tmp/agg.db db stats
//
// i.e. in the subcommand context, ctx.String("db.path") returns the value even
// if the flag was set on the parent context.
func MigrateGlobalFlags(ctx *cli.Context) {
	var iterate func(cs []*cli.Command, fn func(*cli.Command))
	iterate = func(cs []*cli.Command, fn func(*cli.Command)) {
		for _, cmd := range cs {
			if _, ok := migrationApplied[cmd]; ok {
				continue
			}
			migrationApplied[cmd] = struct{}{}
			fn(cmd)
			iterate(cmd.Subcommands, fn)
		}
	}

	// This iterates over all commands and wraps their action function.
	iterate(ctx.App.Commands, func(cmd *cli.Command) {
		if cmd.Action == nil {
			return
		}
		action := cmd.Action
		cmd.Action = func(ctx *cli.Context) error {
			doMigrateFlags(ctx)
			return action(ctx)
		}
	})
}

func doMigrateFlags(ctx *cli.Context) {
	// Aliases of the command's own flags must not be migrated from parents,
	// the canonical name already carries the value.
	aliases := make(map[string]bool)
	for _, fl := range ctx.Command.Flags {
		for _, alias := range fl.Names()[1:] {
			aliases[alias] = true
		}
	}
	for _, name := range ctx.FlagNames() {
		for _, parent := range ctx.Lineage()[1:] {
			if parent.IsSet(name) {
				if !aliases[name] {
					ctx.Set(name, parent.String(name))
				}
				break
			}
		}
	}
}

// AutoEnvVars extends all the specific CLI flags with automatically generated
// env vars by capitalizing the flag, replacing . with _ and prefixing it with
// the specified string.
//
// Note, the prefix should *not* contain the separator underscore, that's added
// automatically.
func AutoEnvVars(flags []cli.Flag, prefix string) {
	for _, flag := range flags {
		envvar := strings.ToUpper(prefix + "_" + strings.ReplaceAll(strings.ReplaceAll(flag.Names()[0], ".", "_"), "-", "_"))
		switch flag := flag.(type) {
		case *cli.StringFlag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		case *cli.BoolFlag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		case *cli.IntFlag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		case *cli.Int64Flag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		case *cli.Uint64Flag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		case *cli.Float64Flag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		case *cli.DurationFlag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		case *DirectoryFlag:
			flag.EnvVars = append(flag.EnvVars, envvar)
		}
	}
}

// CheckEnvVars iterates over all the environment variables and checks if any
// of them look like a CLI flag but is not consumed. This can be used to detect
// old or mistyped names.
func CheckEnvVars(ctx *cli.Context, flags []cli.Flag, prefix string) {
	known := make(map[string]string)
	for _, flag := range flags {
		docflag, ok := flag.(cli.DocGenerationFlag)
		if !ok {
			continue
		}
		for _, envvar := range docflag.GetEnvVars() {
			known[envvar] = flag.Names()[0]
		}
	}
	keyvals := os.Environ()
	sort.Strings(keyvals)
	for _, keyval := range keyvals {
		key := strings.Split(keyval, "=")[0]
		if !strings.HasPrefix(key, prefix+"_") {
			continue
		}
		if flagname, ok := known[key]; ok {
			if ctx.Count(flagname) > 0 {
				log.Info("Config environment variable found, overridden by command line", "var", key, "flag", flagname)
			} else {
				log.Info("Config environment variable found", "var", key)
			}
		} else {
			log.Warn("Unknown config environment variable", "var", key)
		}
	}
}
