package main

import (
	_ "github.com/joho/godotenv/autoload"
)

// go build -ldflags "-X main.version=1.0.1" ./cmd/sheetsql
var version = "0.0.1"

func main() {
	Execute()
}
