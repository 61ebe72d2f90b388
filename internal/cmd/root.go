package cmd

import (
	"flag"
	"os"

	"github.com/spf13/cobra"
	"github.com/weibaohui/negotiator/config"
	"github.com/weibaohui/negotiator/internal/app"
	"k8s.io/klog/v2"
)

var rootCmd = &cobra.Command{
	Use:   "negotiator",
	Short: "AI buyer/seller price negotiation",
	Long: `Negotiator runs a scripted price negotiation between an AI buyer and
an AI seller. Use "auto" to watch a negotiation in the terminal or
"serve" to expose the HTTP and WebSocket API.`,
	SilenceUsage: true,
}

var configPath string

// newApp 测试中替换为使用假生成器的构造函数
var newApp = app.New

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default is $CONFIG_PATH or config.yaml)")

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)
}

// loadConfig --config 优先，其次 CONFIG_PATH，最后 config.yaml
func loadConfig() *config.Config {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	return config.Load(path)
}
