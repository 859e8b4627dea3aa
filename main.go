package main

import "github.com/vendorhub/vendor-engage/cmd"

func main() {
	cmd.Execute()
}
