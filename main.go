package main

import (
	"github.com/xkilldash9x/newsroom-scraper/cmd"
)

func main() {
	cmd.Execute()
}
