// cmd/nutritrack/main.go
package main

func main() {
	Execute()
}
