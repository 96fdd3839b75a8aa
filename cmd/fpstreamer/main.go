package main

import (
	"os"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/cmd/fpstreamer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
