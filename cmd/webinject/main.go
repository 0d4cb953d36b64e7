// webinject keeps web assets injected into Arduino sketch sources.
package main

import (
	"os"

	"github.com/hupe1980/webinject/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
