// ABOUTME: agent-toast turns AI CLI hook events into desktop notifications and
// ABOUTME: brings the originating terminal back to the front on click.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:], newApp()))
}
