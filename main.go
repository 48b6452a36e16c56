package main

import "github.com/Tayyab-Ali-786/Chattify/cmd"

func main() {
	cmd.Execute()
}
