package main

import "github.com/ex-n-soldiers/catalog-tracker/cmd/catalogtracker/cmd"

func main() {
	cmd.Execute()
}
