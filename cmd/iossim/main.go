// Command iossim automates iOS simulators through idb, simctl, and xcodebuild.
package main

import "github.com/devicelab-dev/iossim/pkg/cli"

func main() {
	cli.Execute()
}
