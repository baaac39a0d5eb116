package main

// TODO: wire the config loader
func main() {
	run()
}
