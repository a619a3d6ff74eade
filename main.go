// package main provides the entry point for depchain, the npm dependency chain
// analyzer for vulnerability remediation.
package main

import "github.com/ortelius/depchain/cmd"

func main() {
	cmd.Execute()
}
