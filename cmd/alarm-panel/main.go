package main

import "github.com/oshokin/alarm-coordinator/cmd/alarm-panel/cmd"

func main() {
	cmd.Execute()
}
