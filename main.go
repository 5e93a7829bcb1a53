/*
Copyright © 2026 The pglens Authors
*/
package main

import "github.com/pglens/pglens/cmd"

func main() {
	cmd.Execute()
}
