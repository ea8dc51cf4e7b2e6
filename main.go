package main

import "tripsync-backend/cmd"

func main() {
	cmd.Run()
}
