package main

import "github.com/NCDesigner/QG-Estrat-gico/cmd"

func main() {
	cmd.Execute()
}
