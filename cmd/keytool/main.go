// Command keytool encrypts a base58 wallet key into a key file the trader can
// read through WALLET_KEY_FILE and WALLET_KEY_PASSWORD.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"stoic-trader/pkg/wallet"
)

var (
	out     = flag.String("o", "wallet.key", "output key file")
	decrypt = flag.Bool("verify", false, "decrypt -o and print the wallet address")
)

func main() {
	flag.Parse()

	password := os.Getenv("WALLET_KEY_PASSWORD")
	if password == "" {
		fail("WALLET_KEY_PASSWORD must be set")
	}

	if *decrypt {
		blob, err := os.ReadFile(*out)
		if err != nil {
			fail(err.Error())
		}
		key, err := wallet.DecryptKey(blob, password)
		if err != nil {
			fail(err.Error())
		}
		fmt.Println(key.PublicKey().String())
		return
	}

	// The key is read from stdin so it never lands in shell history.
	fmt.Fprint(os.Stderr, "base58 private key: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fail("no key on stdin")
	}
	blob, err := wallet.EncryptKey(strings.TrimSpace(line), password)
	if err != nil {
		fail(err.Error())
	}
	if err := os.WriteFile(*out, blob, 0o600); err != nil {
		fail(err.Error())
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", *out)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "keytool:", msg)
	os.Exit(1)
}
