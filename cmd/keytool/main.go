// Command keytool encrypts a signing key into the key file format read by
// polytrade, and checks existing key files.
//
//	keytool seal -out key.json          # key from POLYTRADE_WALLET_PRIVATE_KEY or stdin
//	keytool open -in key.json           # prints the address if the password is right
//
// The password is read from POLYTRADE_WALLET_KEY_PASSWORD, or from the first
// line of stdin after the key.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/polytrade/internal/crypto"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	in := bufio.NewReader(os.Stdin)

	var err error
	switch os.Args[1] {
	case "seal":
		err = seal(os.Args[2:], in, os.Stdout)
	case "open":
		err = open(os.Args[2:], in, os.Stdout)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "keytool: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: keytool seal -out FILE [-iterations N] | keytool open -in FILE")
}

func seal(args []string, in *bufio.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("seal", flag.ExitOnError)
	path := fs.String("out", "key.json", "key file to write")
	iterations := fs.Int("iterations", crypto.DefaultIterations, "PBKDF2 iterations")
	_ = fs.Parse(args)

	key, err := secret("POLYTRADE_WALLET_PRIVATE_KEY", "private key", in)
	if err != nil {
		return err
	}
	key = strings.TrimPrefix(key, "0x")
	pk, err := ethcrypto.HexToECDSA(key)
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	password, err := secret("POLYTRADE_WALLET_KEY_PASSWORD", "password", in)
	if err != nil {
		return err
	}

	data, err := crypto.SealKey(key, password, *iterations)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", *path, err)
	}
	fmt.Fprintf(out, "sealed %s -> %s\n", ethcrypto.PubkeyToAddress(pk.PublicKey).Hex(), *path)
	return nil
}

func open(args []string, in *bufio.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	path := fs.String("in", "key.json", "key file to check")
	_ = fs.Parse(args)

	data, err := os.ReadFile(*path)
	if err != nil {
		return err
	}
	addr, err := crypto.KeyFileAddress(data)
	if err != nil {
		return err
	}
	password, err := secret("POLYTRADE_WALLET_KEY_PASSWORD", "password", in)
	if err != nil {
		return err
	}
	if _, err := crypto.OpenKey(data, password); err != nil {
		return err
	}
	fmt.Fprintf(out, "ok %s\n", addr.Hex())
	return nil
}

// secret reads env, falling back to the next line of stdin.
func secret(env, what string, in *bufio.Reader) (string, error) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v, nil
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", what, err)
	}
	if line = strings.TrimSpace(line); line == "" {
		return "", fmt.Errorf("no %s given (set %s or pipe it on stdin)", what, env)
	}
	return line, nil
}
