package main

import "github.com/JakeFAU/page-analyzer/cmd"

func main() {
	cmd.Execute()
}
