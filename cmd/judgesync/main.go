// The main package for the judgesync executable.
package main

import "github.com/JakeFAU/judge-sync/cmd"

func main() {
	cmd.Execute()
}
