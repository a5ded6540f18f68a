package main

import "rpgm-intl/internal/cli"

func main() {
	cli.Execute()
}
