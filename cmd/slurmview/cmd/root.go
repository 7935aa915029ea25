package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/slurmview/slurmview/pkg/cluster"
	"github.com/slurmview/slurmview/pkg/events"
	"github.com/slurmview/slurmview/pkg/logging"
	"github.com/slurmview/slurmview/pkg/models"
	"github.com/slurmview/slurmview/pkg/retry"
	"github.com/slurmview/slurmview/pkg/slurm"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string

	flagHost     string
	flagPort     int
	flagUser     string
	flagPassword string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "slurmview",
	Short: "Live view of a SLURM cluster over SSH",
	Long: `slurmview mirrors the state of a remote SLURM cluster (nodes and the
work queue) by polling it over SSH, and exposes that state on the command
line, over HTTP and as status-change history.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.slurmview/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "cluster head node hostname")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "SSH port (default 22)")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "", "SSH username")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "password", "", "SSH password (prefer SLURMVIEW_PASSWORD)")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".slurmview"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("slurmview")
	viper.AutomaticEnv()
	viper.BindEnv("password", "SLURMVIEW_PASSWORD")

	viper.SetDefault("port", 22)
	viper.SetDefault("connect_timeout", 30*time.Second)
	viper.SetDefault("retry_attempts", 3)
	viper.SetDefault("retry_delay", 5*time.Second)
	viper.SetDefault("poll_interval", 5*time.Second)
	viper.SetDefault("listen", ":8484")

	// Missing config file is fine; flags and env can carry everything.
	_ = viper.ReadInConfig()
}

// connectionConfig builds the per-connection settings, flags overriding
// the config file. The core never reads files itself.
func connectionConfig() models.ConnectionConfig {
	cfg := models.ConnectionConfig{
		Host:           viper.GetString("host"),
		Port:           viper.GetInt("port"),
		User:           viper.GetString("user"),
		Password:       viper.GetString("password"),
		ConnectTimeout: viper.GetDuration("connect_timeout"),
		RetryAttempts:  viper.GetInt("retry_attempts"),
		RetryDelay:     viper.GetDuration("retry_delay"),
	}
	if flagHost != "" {
		cfg.Host = flagHost
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}
	if flagUser != "" {
		cfg.User = flagUser
	}
	if flagPassword != "" {
		cfg.Password = flagPassword
	}
	return cfg
}

func newLogger() *logging.Logger {
	return logging.NewLogger(logging.ParseLevel(logLevel), false)
}

// env bundles the objects every command needs. One bus and one session per
// process, constructed here and passed down; nothing global.
type env struct {
	log     *logging.Logger
	bus     *events.Bus
	session *cluster.Session
	client  *slurm.Client
}

func newEnv() (*env, error) {
	cfg := connectionConfig()
	if cfg.Host == "" {
		return nil, fmt.Errorf("no cluster host configured (use --host, the config file or SLURMVIEW_HOST)")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("no user configured (use --user, the config file or SLURMVIEW_USER)")
	}

	log := newLogger()
	bus := events.NewBus(log)
	session := cluster.NewSession(cfg, bus, log)
	client := slurm.NewClient(session, bus, log)
	return &env{log: log, bus: bus, session: session, client: client}, nil
}

// connect dials the cluster, retrying per the configured budget. The
// session itself never retries; the loop lives here where it can be
// cancelled.
func (e *env) connect(ctx context.Context) error {
	cfg := retry.FromConnectionConfig(e.session.Config())
	return retry.Do(ctx, cfg, func() error {
		return e.session.Connect()
	})
}
