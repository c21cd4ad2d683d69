package main

import "modvault/internal/modvault"

func main() {
	modvault.Main()
}
