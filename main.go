package main

import (
	"log"

	"switchboard/cli"
)

func main() {
	log.SetFlags(0)
	cli.Execute()
}
