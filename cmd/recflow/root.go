package main

import (
	"errors"
	"io"
	"io/fs"
	"strings"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rushteam/recflow/config"
	"github.com/rushteam/recflow/pkg/logging"
)

type rootOptions struct {
	configPath   string
	envPath      string
	snapshotPath string
	pretty       bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "recflow",
		Short: "recflow - personalized content recommendations",
		Long: `recflow scores catalog items for each user from their viewing and search history,
stores the latest recommendation set per user and optionally sends a push notification.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.envPath, "env", ".env", "Path to the .env file (ignored when missing)")
	cmd.PersistentFlags().StringVar(&opts.snapshotPath, "snapshot", "", "Path to the users/catalog/events snapshot (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "Indent JSON output")

	cmd.AddCommand(newGenerateCmd(opts))
	cmd.AddCommand(newBatchCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	return cmd
}

// loadConfig 依次加载 .env、配置文件与环境变量，并按配置初始化日志。
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if err := loadEnvFile(o.envPath); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.snapshotPath != "" {
		cfg.Snapshot = o.snapshotPath
	}
	logging.Init(cfg.LoggingConfig())
	return cfg, nil
}

// loadEnvFile 加载 .env；文件不存在不是错误，已有的环境变量不会被覆盖。
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	logging.Debug().Str("path", path).Msg("loaded env file")
	return nil
}

func (o *rootOptions) writeJSON(w io.Writer, v any) error {
	var (
		data []byte
		err  error
	)
	if o.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
