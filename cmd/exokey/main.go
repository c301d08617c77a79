// exokey mints an API key into the flat key file without starting the
// server.
package main

import (
	"flag"
	"fmt"
	"log"

	"exoserve/auth"
)

func main() {
	keysFile := flag.String("keys", "./api_keys.txt", "path to the API key file")
	dryRun := flag.Bool("print-only", false, "print a key without persisting it")
	flag.Parse()

	if *dryRun {
		key, err := auth.NewKey()
		if err != nil {
			log.Fatalf("Failed to generate key: %v", err)
		}
		fmt.Println(key)
		return
	}

	store, err := auth.Open(*keysFile)
	if err != nil {
		log.Fatalf("Failed to open keystore: %v", err)
	}
	defer store.Close()

	key, err := store.Generate()
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}
	fmt.Println(key)
}
