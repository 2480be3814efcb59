/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ssargent/db2kit/cmd/db2/cmd"

func main() {
	cmd.Execute()
}
