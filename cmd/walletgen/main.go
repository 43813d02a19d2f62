// Command walletgen mints a persona identity offline and prints it. Useful
// for provisioning test holders without a running server; the private key
// is printed once and never stored.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"persona/internal/identity"
)

func main() {
	fromKey := flag.String("from-key", "", "re-derive the identity from an existing private key instead of minting one")
	asJSON := flag.Bool("json", false, "emit JSON instead of plain text")
	flag.Parse()

	generator := identity.NewGenerator()

	var (
		id  *identity.Identity
		err error
	)
	if *fromKey != "" {
		id, err = generator.FromPrivateKey(*fromKey)
	} else {
		id, err = generator.Generate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "walletgen:", err)
		os.Exit(1)
	}
	defer identity.Zero(id.PrivateKey)

	if *asJSON {
		out := map[string]string{
			"did":         id.DID.String(),
			"address":     id.Address,
			"public_key":  id.PublicKey,
			"private_key": id.PrivateKeyHex(),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, "walletgen:", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("did:        ", id.DID.String())
	fmt.Println("address:    ", id.Address)
	fmt.Println("public key: ", id.PublicKey)
	fmt.Println("private key:", id.PrivateKeyHex())
	fmt.Println()
	fmt.Println("Record the private key now; it is not stored anywhere.")
}
