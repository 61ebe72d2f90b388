package main

import (
	"os"

	"github.com/weibaohui/negotiator/internal/cmd"
	"k8s.io/klog/v2"
)

func main() {
	defer klog.Flush()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
