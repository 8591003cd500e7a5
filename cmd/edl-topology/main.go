package main

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wangxicoding/edl/pkg/logger"
)

func main() {
	logger.SetLogrus(*logger.DefaultConfig())

	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errTopologyDiffers) {
			os.Exit(1)
		}
		log.WithError(err).Fatal("fatal error running edl-topology")
	}
}
