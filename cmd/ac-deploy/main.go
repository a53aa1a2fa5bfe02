package main

import "github.com/oshokin/ac-deploy/cmd/ac-deploy/cmd"

func main() {
	cmd.Execute()
}
