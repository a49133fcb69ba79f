package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/gippro/learnsync/pkg/jwt"
)

const Version = "0.1.0"

func main() {
	usage := `Mint sign-in tokens for INITIAL_AUTH_TOKEN.

Usage:
    mint-token --uid=<uid> [--key=<key>] [--issuer=<issuer>] [--ttl=<ttl>] [--name=<name>] [--json]
    mint-token --keygen [--key=<key>] [--pub=<pub>]

Options:
    -h --help            Show this screen.
    --version            Show version.
    --uid=<uid>          User id carried in the user_id claim.
    --name=<name>        Display name claim.
    --key=<key>          Private key path [default: ./keys/private.pem].
    --pub=<pub>          Public key path for --keygen [default: ./keys/public.pem].
    --issuer=<issuer>    Token issuer [default: learnsync.gippro.dev].
    --ttl=<ttl>          Token lifetime with time units: m, h [default: 168h].
    --json               Output as JSON.
    --keygen             Write a new RSA key pair and exit.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	keyPath, _ := opts.String("--key")

	if keygen, _ := opts.Bool("--keygen"); keygen {
		pubPath, _ := opts.String("--pub")
		if err := jwt.GenerateKeyPair(keyPath, pubPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s and %s\n", keyPath, pubPath)
		return
	}

	uid, _ := opts.String("--uid")
	name, _ := opts.String("--name")
	issuer, _ := opts.String("--issuer")
	ttlArg, _ := opts.String("--ttl")

	ttl, err := time.ParseDuration(ttlArg)
	if err != nil || ttl <= 0 {
		fmt.Fprintf(os.Stderr, "Error: invalid --ttl %q\n", ttlArg)
		os.Exit(2)
	}

	signer, err := jwt.NewSigner(keyPath, issuer, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading signing key: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nGenerate keys with: mint-token --keygen\n")
		os.Exit(1)
	}

	token, err := signer.SignClaims(jwt.Claims{UserID: uid, DisplayName: name})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(1)
	}

	if asJSON, _ := opts.Bool("--json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"token":      token,
			"user_id":    uid,
			"issuer":     issuer,
			"expires_in": int64(ttl.Seconds()),
		})
		return
	}

	fmt.Println(token)
}
