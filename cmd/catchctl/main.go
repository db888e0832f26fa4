// Command catchctl computes, controls and stores catch batch trees.
//
// Trees are read and written as JSON. Storage and report backends are chosen
// through the CATCHCORE_STORAGE_* and CATCHCORE_BLOB_* environment variables.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "catchctl:", err)
		os.Exit(1)
	}
}
