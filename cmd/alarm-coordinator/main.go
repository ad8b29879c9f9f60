package main

import "github.com/oshokin/alarm-coordinator/cmd/alarm-coordinator/cmd"

func main() {
	cmd.Execute()
}
