package main

import "github.com/KNU-SingalProject/back/cmd"

func main() {
	cmd.Run()
}
