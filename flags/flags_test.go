package flags

import (
	"flag"
	"testing"
	"time"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestOptionalFlagsDontSetRequired asserts that all flags deemed optional set
// the Required field to false.
func TestOptionalFlagsDontSetRequired(t *testing.T) {
	for _, flag := range optionalFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		require.True(t, ok)
		require.False(t, reqFlag.IsRequired())
	}
}

func TestUniqueFlags(t *testing.T) {
	seen := make(map[string]struct{})
	for _, flag := range Flags {
		name := flag.Names()[0]
		if _, ok := seen[name]; ok {
			t.Errorf("duplicate flag %s", name)
			continue
		}
		seen[name] = struct{}{}
	}
}

func TestEnvVarFormat(t *testing.T) {
	for _, flag := range Flags {
		flagName := flag.Names()[0]

		t.Run(flagName, func(t *testing.T) {
			envFlagGetter, ok := flag.(interface {
				GetEnvVars() []string
			})
			require.True(t, ok, "must be able to cast the flag to an EnvVar interface")
			envFlags := envFlagGetter.GetEnvVars()
			require.Equal(t, 1, len(envFlags), "flags should have exactly one env var")

			// The repeatable channel flag reads a list from its env var.
			if flagName == Channels.Name {
				require.Equal(t, "PKG_ACCEPTOR_CHANNELS", envFlags[0])
				return
			}
			require.Equal(t, opservice.FlagNameToEnvVarName(flagName, EnvVarPrefix), envFlags[0])
		})
	}
}

func TestCheckRequired(t *testing.T) {
	newContext := func(t *testing.T, args ...string) *cli.Context {
		set := flag.NewFlagSet("test", flag.ContinueOnError)
		for _, f := range Flags {
			require.NoError(t, f.Apply(set))
		}
		require.NoError(t, set.Parse(args))
		return cli.NewContext(cli.NewApp(), set, nil)
	}

	err := CheckRequired(newContext(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flag package is required")

	assert.NoError(t, CheckRequired(newContext(t, "--package", "foo-1.0-h123_0.conda")))
}

func TestFlagsFromEnv(t *testing.T) {
	t.Setenv("PKG_ACCEPTOR_PACKAGE", "/out/foo-1.0-h123_0.tar.bz2")
	t.Setenv("PKG_ACCEPTOR_CHANNELS", "local,conda-forge")
	t.Setenv("PKG_ACCEPTOR_TEST_TIMEOUT", "90s")
	t.Setenv("PKG_ACCEPTOR_KEEP_TEST_PREFIX", "true")

	var ran bool
	app := &cli.App{
		Flags: Flags,
		Action: func(ctx *cli.Context) error {
			ran = true
			require.NoError(t, CheckRequired(ctx))
			assert.Equal(t, "/out/foo-1.0-h123_0.tar.bz2", ctx.String(Package.Name))
			assert.Equal(t, []string{"local", "conda-forge"}, ctx.StringSlice(Channels.Name))
			assert.Equal(t, 90*time.Second, ctx.Duration(TestTimeout.Name))
			assert.True(t, ctx.Bool(KeepTestPrefix.Name))
			assert.Equal(t, "micromamba", ctx.String(Installer.Name))
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"pkg-acceptor"}))
	assert.True(t, ran)
}

func TestChannelFlag(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"default channel", []string{"app"}, []string{"conda-forge"}},
		{"repeated flag keeps order", []string{"app", "-c", "local", "--channel", "bioconda"}, []string{"local", "bioconda"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			app := &cli.App{
				Flags: []cli.Flag{Channels},
				Action: func(ctx *cli.Context) error {
					assert.Equal(t, tc.expected, ctx.StringSlice(Channels.Name))
					return nil
				},
			}
			assert.NoError(t, app.Run(tc.args))
		})
	}
}

func TestMissingPackageFailsApp(t *testing.T) {
	app := &cli.App{
		Flags:  []cli.Flag{Package},
		Action: func(*cli.Context) error { return nil },
	}
	err := app.Run([]string{"app"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "package")
}
