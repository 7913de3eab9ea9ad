// This file is the entry point for the streamgrab application. It
// initializes and executes the root command defined in the cmd package.
package main

import "streamgrab/cmd"

func main() {
	cmd.Execute()
}
