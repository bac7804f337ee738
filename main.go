// The main package for the catalog-pipeline executable.
package main

import (
	"github.com/JakeFAU/catalog-pipeline/cmd"
)

func main() {
	cmd.Execute()
}
