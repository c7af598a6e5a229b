package main

import (
	"fmt"

	_ "github.com/agentuity/go-cache/cache"
	_ "github.com/agentuity/go-cache/codec"
	_ "github.com/agentuity/go-cache/config"
	_ "github.com/agentuity/go-cache/logger"
)

func main() {
	fmt.Println("Hi")
}
