package main

import (
	"os"

	"github.com/amirk1998/univ-erp/internal/logger"
)

func main() {
	if err := RootCmd().Execute(); err != nil {
		logger.GetDefault().Error("command failed", "error", err)
		os.Exit(1)
	}
}
