// Package main is the entry point for the iptv-portal server and tools.
package main

import (
	"log"

	"github.com/snapetech/iptv-portal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
