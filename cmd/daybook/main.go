// daybook is the offline-first planner CLI: it migrates task exports into
// the local store, keeps a remote copy in sync, and reports on schedules.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/daybook-app/daybook/internal/schedrepo"
	"github.com/daybook-app/daybook/internal/store/localdb"
	"github.com/daybook-app/daybook/internal/store/remotedb"
	"github.com/daybook-app/daybook/internal/syncer"
	"github.com/daybook-app/daybook/internal/taskrepo"
)

var rootCmd = &cobra.Command{
	Use:   "daybook",
	Short: "Offline-first task and schedule sync engine",
	Long: `daybook keeps tasks and daily schedules in a local store that works
without connectivity, mirrors every write to a remote store, and replays
deferred writes once the remote becomes reachable again.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	}
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default: $HOME/.daybook/config.yaml)")
	flags.String("user-id", "local", "User id scoping the remote store")
	flags.String("data-dir", "", "Data directory (default: $HOME/.daybook)")
	flags.String("inbox", "", "Inbox directory of task exports (default: <data-dir>/inbox)")
	flags.String("log-file", "", "Log to a rotating file instead of stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
		&cobra.Group{ID: "report", Title: "Reporting commands:"},
	)
}

// initConfig wires flags, environment and the optional config file into one
// viper instance. Precedence: flags > DAYBOOK_* env > config file > defaults.
func initConfig(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return err
	}
	viper.SetEnvPrefix("DAYBOOK")
	viper.AutomaticEnv()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil // no home dir, flags and env still work
	}
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(filepath.Join(home, ".daybook"))
	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; flags and env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// dataDir resolves the data directory from config, defaulting under $HOME.
func dataDir() (string, error) {
	if dir := viper.GetString("data-dir"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	return filepath.Join(home, ".daybook"), nil
}

func inboxDir() (string, error) {
	if dir := viper.GetString("inbox"); dir != "" {
		return dir, nil
	}
	base, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "inbox"), nil
}

// newLogger builds the shared logger, rotating through lumberjack when a log
// file is configured.
func newLogger(prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if logFile := viper.GetString("log-file"); logFile != "" {
		out = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}

// env bundles the stores, coordinator and repositories a command needs.
type env struct {
	local  *localdb.DB
	remote *remotedb.DB
	coord  *syncer.Coordinator
	tasks  *taskrepo.Repository
	sched  *schedrepo.Repository
	logger *log.Logger
}

// openEnv opens both stores and wires the repositories over them.
func openEnv(prefix string) (*env, error) {
	base, err := dataDir()
	if err != nil {
		return nil, err
	}
	userID := viper.GetString("user-id")
	logger := newLogger(prefix)

	local, err := localdb.Open(filepath.Join(base, "local.db"), userID)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	remote, err := remotedb.Open(filepath.Join(base, "remote.db"), userID)
	if err != nil {
		_ = local.Close()
		return nil, fmt.Errorf("open remote store: %w", err)
	}

	coord := syncer.New(local, remote, logger)
	taskCfg := taskrepo.DefaultConfig()
	taskCfg.Logger = logger
	schedCfg := schedrepo.DefaultConfig()
	schedCfg.Logger = logger

	return &env{
		local:  local,
		remote: remote,
		coord:  coord,
		tasks:  taskrepo.New(coord, remote, local, taskCfg),
		sched:  schedrepo.New(coord, remote, local, schedCfg),
		logger: logger,
	}, nil
}

// Close releases both stores.
func (e *env) Close() {
	if err := e.remote.Close(); err != nil {
		e.logger.Printf("Error closing remote store: %v", err)
	}
	if err := e.local.Close(); err != nil {
		e.logger.Printf("Error closing local store: %v", err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
