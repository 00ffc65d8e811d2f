// Command runtimectl exercises the reactive runtime's storage engine
// from the command line: pick a replica backend, write a value through
// a transaction, commit it, and read it back.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/evalgo/reactive-runtime/internal/jsonpath"
	"github.com/evalgo/reactive-runtime/internal/replica"
	"github.com/evalgo/reactive-runtime/internal/space"
	"github.com/evalgo/reactive-runtime/internal/txn"
	"github.com/evalgo/reactive-runtime/pkg/rtconfig"
	"github.com/evalgo/reactive-runtime/pkg/rtlog"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// RootCmd is runtimectl's entry point.
var RootCmd = &cobra.Command{
	Use:   "runtimectl",
	Short: "inspect and exercise the reactive runtime's storage engine",
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.runtimectl.yaml)")
	RootCmd.PersistentFlags().String("replica-backend", "", "memory | bolt | couch")
	RootCmd.PersistentFlags().String("bolt-path", "", "bbolt database file path")
	RootCmd.PersistentFlags().String("couch-url", "", "CouchDB server URL")
	RootCmd.PersistentFlags().String("couch-database", "", "CouchDB database name")

	viper.BindPFlag("REPLICA_BACKEND", RootCmd.PersistentFlags().Lookup("replica-backend"))
	viper.BindPFlag("BOLT_PATH", RootCmd.PersistentFlags().Lookup("bolt-path"))
	viper.BindPFlag("COUCH_URL", RootCmd.PersistentFlags().Lookup("couch-url"))
	viper.BindPFlag("COUCH_DATABASE", RootCmd.PersistentFlags().Lookup("couch-database"))

	RootCmd.AddCommand(configShowCmd, txnDemoCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".runtimectl")
	}
	viper.SetEnvPrefix("RUNTIME")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig merges rtconfig.Load's environment defaults with anything
// viper picked up from flags or a config file.
func loadConfig() rtconfig.Config {
	cfg := rtconfig.Load("RUNTIME")
	if v := viper.GetString("REPLICA_BACKEND"); v != "" {
		cfg.Replica.Backend = v
	}
	if v := viper.GetString("BOLT_PATH"); v != "" {
		cfg.Replica.BoltPath = v
	}
	if v := viper.GetString("COUCH_URL"); v != "" {
		cfg.Replica.CouchURL = v
	}
	if v := viper.GetString("COUCH_DATABASE"); v != "" {
		cfg.Replica.CouchDatabase = v
	}
	return cfg
}

func newLogger(cfg rtconfig.Config) *logrus.Entry {
	logger := rtlog.New(rtlog.Config{Level: rtlog.Level(cfg.Log.Level), Format: cfg.Log.Format})
	return logrus.NewEntry(logger)
}

func openerFor(cfg rtconfig.Config) space.Opener {
	return func(spaceID string) (replica.Replica, error) {
		switch cfg.Replica.Backend {
		case "bolt":
			return replica.OpenBoltReplica(cfg.Replica.BoltPath)
		case "couch":
			return replica.OpenCouchReplica(context.Background(), cfg.Replica.CouchURL, cfg.Replica.CouchDatabase)
		default:
			return replica.NewMemoryReplica(), nil
		}
	}
}

var configShowCmd = &cobra.Command{
	Use:   "config show",
	Short: "print the resolved runtime configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if err := rtconfig.ValidateConfig(cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		enc, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(enc))
	},
}

var txnDemoCmd = &cobra.Command{
	Use:   "txn demo --space NAME --id ID --type TYPE --path a.b --value JSON",
	Short: "write a value through a transaction, commit it, and read it back",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		log := newLogger(cfg)
		mgr := space.New(openerFor(cfg), log)
		defer mgr.CloseAll()

		spaceID, _ := cmd.Flags().GetString("space")
		id, _ := cmd.Flags().GetString("id")
		typ, _ := cmd.Flags().GetString("type")
		pathStr, _ := cmd.Flags().GetString("path")
		valueStr, _ := cmd.Flags().GetString("value")

		var value interface{}
		if err := json.Unmarshal([]byte(valueStr), &value); err != nil {
			fmt.Fprintf(os.Stderr, "invalid --value JSON: %v\n", err)
			os.Exit(1)
		}

		addr := txn.Address{Space: spaceID, ID: id, Type: typ, Path: parsePath(pathStr)}

		ctx := context.Background()
		write := txn.New(mgr, log)
		if err := write.Write(ctx, addr, value); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
		if err := write.Commit(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "commit: %v\n", err)
			os.Exit(1)
		}

		read := txn.New(mgr, log)
		got, err := read.Read(ctx, addr, txn.ReadOptions{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "read: %v\n", err)
			os.Exit(1)
		}
		enc, _ := json.MarshalIndent(got, "", "  ")
		fmt.Println(string(enc))
	},
}

func init() {
	for _, c := range []*cobra.Command{txnDemoCmd} {
		c.Flags().String("space", "default", "space name")
		c.Flags().String("id", "", "entity id")
		c.Flags().String("type", "application/json", "entity type")
		c.Flags().String("path", "", "dot-separated path, e.g. a.b.c")
		c.Flags().String("value", "null", "JSON value to write")
	}
}

// parsePath splits a dot-separated CLI path argument into a
// jsonpath.Path, treating purely-numeric segments as array indices.
func parsePath(s string) jsonpath.Path {
	if s == "" {
		return jsonpath.Path{}
	}
	segments := strings.Split(s, ".")
	p := make(jsonpath.Path, 0, len(segments))
	for _, seg := range segments {
		if n, err := parseIndex(seg); err == nil {
			p = append(p, n)
		} else {
			p = append(p, seg)
		}
	}
	return p
}

func parseIndex(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, err
	}
	if fmt.Sprintf("%d", n) != s {
		return 0, fmt.Errorf("not a plain integer")
	}
	return n, nil
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
