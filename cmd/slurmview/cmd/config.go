package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file to $HOME/.slurmview/config.yaml",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// fileConfig is the YAML shape of the config file.
type fileConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	Listen         string        `yaml:"listen"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := connectionConfig()
	show := fileConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		User:           cfg.User,
		ConnectTimeout: cfg.ConnectTimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryDelay:     cfg.RetryDelay,
	}
	if cfg.Password != "" {
		show.Password = "********"
	}
	data, err := yaml.Marshal(show)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("find home directory: %w", err)
	}
	dir := filepath.Join(home, ".slurmview")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}

	starter := fileConfig{
		Host:           "cluster.example.com",
		Port:           22,
		User:           "youruser",
		ConnectTimeout: 30 * time.Second,
		RetryAttempts:  3,
		RetryDelay:     5 * time.Second,
		PollInterval:   5 * time.Second,
		Listen:         ":8484",
	}
	data, err := yaml.Marshal(starter)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Set the password via SLURMVIEW_PASSWORD rather than the file when possible.")
	return nil
}
