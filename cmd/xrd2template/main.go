// xrd2template generates Backstage scaffolder templates from Crossplane XRDs.
package main

import (
	"os"

	"github.com/hupe1980/xrd2template/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
