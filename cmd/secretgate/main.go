// secretgate — PIN-gated approval workflow for secret files.
package main

import "github.com/quantops/secretgate/internal/cli"

func main() {
	cli.Execute()
}
