// Command gitwatch watches a file or directory and automatically
// commits every change into its git repository, optionally keeping a
// remote in sync.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
