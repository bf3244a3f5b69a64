package main

import "github.com/brasco123/kdg-kiosk-installer/cmd/kiosk-installer/cmd"

func main() {
	cmd.Execute()
}
