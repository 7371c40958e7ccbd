// Package main provides the entry point for the trustscan CLI.
//
// trustscan estimates how trustworthy a website is. It gathers evidence
// about the domain (HTTPS, TLS, registration age, homepage content),
// optionally asks an AI judge, and prints a 0-100 score with the reasons
// behind it.
//
// Usage:
//
//	trustscan analyze <url>...
//	trustscan serve
//	trustscan flagged [query]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
