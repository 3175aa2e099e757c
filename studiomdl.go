package main

import (
	"log"

	"github.com/mogaika/studiomdl/cli"
)

func main() {
	log.SetFlags(0)
	if err := cli.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
