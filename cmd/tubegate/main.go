// Package main is the entry point for tubegate, the quota-aware batch
// video uploader.
package main

func main() {
	Execute()
}
