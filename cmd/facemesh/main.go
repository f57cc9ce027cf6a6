// Facemesh serves a live webcam view with face landmarks and blend-shape
// scores drawn over it.
package main

func main() {
	Execute()
}
