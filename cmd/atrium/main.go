package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/atrium-gateway/atrium"
)

func main() {
	log.Fatal(atrium.Run(atrium.Options{
		ApplicationLogPrefix: "[APP]",
	}))
}
