package main

import (
	"os"

	"github.com/aleeya2903/zaya-chatbot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
