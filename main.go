package main

import "github.com/hadijannat/titan-aas/cli"

func main() {
	cli.Execute()
}
