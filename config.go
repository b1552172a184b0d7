package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind        string
	introDelay  time.Duration
	port        int
	prefix      string
	profile     bool
	revealDelay time.Duration
	spectrums   string
	tlsCert     string
	tlsKey      string
	verbose     bool
	version     bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.introDelay < 0 || c.revealDelay < 0 {
		return errors.New("delays must not be negative")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("WAVELENGTH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "wavelength",
		Short:         "A realtime server for the Wavelength party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: WAVELENGTH_BIND)")
	fs.DurationVar(&cfg.introDelay, "intro-delay", 5*time.Second, "pause between announcing a presenter and showing their clue (env: WAVELENGTH_INTRO_DELAY)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: WAVELENGTH_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: WAVELENGTH_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: WAVELENGTH_PROFILE)")
	fs.DurationVar(&cfg.revealDelay, "reveal-delay", 1500*time.Millisecond, "pause between the reveal warning and the target broadcast (env: WAVELENGTH_REVEAL_DELAY)")
	fs.StringVar(&cfg.spectrums, "spectrums", "", "path to a JSON file of spectrum pairs, replacing the embedded set (env: WAVELENGTH_SPECTRUMS)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: WAVELENGTH_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: WAVELENGTH_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: WAVELENGTH_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: WAVELENGTH_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("wavelength v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
