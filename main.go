// File: main.go

package main

import "github.com/billfetch/billfetch-cli/cmd"

func main() {
	cmd.Execute()
}
