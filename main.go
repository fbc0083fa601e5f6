package main

import (
	"os"

	"shipping-gateway/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
