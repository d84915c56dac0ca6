// moodle-analytics serves aggregated Moodle site statistics.
//
// Usage:
//
//	moodle-analytics serve
//	moodle-analytics stats
//	moodle-analytics doctor
//	moodle-analytics report --server http://localhost:8080
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
