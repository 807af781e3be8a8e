// Command ceuctl is the operator CLI for the CE compliance API: it applies
// migrations, runs the lifecycle sweep, revokes and verifies certificates and
// mints bearer tokens for testing.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
