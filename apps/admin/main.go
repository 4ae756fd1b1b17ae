package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/masomo/core"
	logsvc "github.com/trezcool/masomo/services/logger"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	cli := newCommandLine(conf, logger, os.Stdout)
	if err := cli.rootCmd().Execute(); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
