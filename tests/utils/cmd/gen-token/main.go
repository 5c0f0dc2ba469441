package main

import (
	"flag"
	"fmt"
	"log"

	testutil "statstestutil"
)

func main() {
	userID := flag.String("user", "integration-user", "subject claim for the generated token")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		*userID = args[0]
	}

	tok, err := testutil.TestToken(*userID)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}

	fmt.Print(tok)
}
