package main

import (
	"os"

	"github.com/ShibagniBhattacharjee06/lifelinex/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		os.Exit(1)
	}
}
