package main

import "github.com/go-sif/sched/cmd/schedsim/cmd"

func main() {
	cmd.Execute()
}
