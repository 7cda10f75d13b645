// Command proposer generates multi-section R&D proposals from a project brief.
package main

func main() {
	Execute()
}
